package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores inventory rows in a single SQLite file. Money is
// stored as decimal TEXT and timestamps as RFC 3339 TEXT in UTC.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ datastore.Store     = (*SQLiteRepository)(nil)
	_ datastore.UserStore = (*SQLiteRepository)(nil)
	_ datastore.Pinger    = (*SQLiteRepository)(nil)
)

// DSN builds a modernc.org/sqlite data source with foreign keys enforced.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY under the HTTP server
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return mapError("ping", r.db.PingContext(ctx))
}

func (r *SQLiteRepository) timestamp() string {
	return formatTime(r.now())
}

const categoryColumns = "id, name, description, color, created_at, updated_at"

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY created_at, name")
	if err != nil {
		return nil, mapError("list_categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, mapError("list_categories", err)
		}
		out = append(out, c)
	}
	return out, mapError("list_categories", rows.Err())
}

func (r *SQLiteRepository) InsertCategory(ctx context.Context, in core.NewCategory) (core.Category, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	ts := r.timestamp()
	row := r.db.QueryRowContext(ctx,
		"INSERT INTO categories (id, name, description, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING "+categoryColumns,
		uuid.NewString(), in.Name, in.Description, in.Color, ts, ts)
	c, err := scanCategory(row)
	return c, mapError("insert_category", err)
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) (core.Category, error) {
	if err := p.Validate(); err != nil {
		return core.Category{}, err
	}
	set := newSetClause()
	if p.Name != nil {
		set.add("name", strings.TrimSpace(*p.Name))
	}
	if p.Description != nil {
		set.add("description", strings.TrimSpace(*p.Description))
	}
	if p.Color != nil {
		set.add("color", *p.Color)
	}
	set.add("updated_at", r.timestamp())

	query, args := set.update("categories", id, categoryColumns)
	c, err := scanCategory(r.db.QueryRowContext(ctx, query, args...))
	return c, mapError("update_category", err)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "delete_category", "categories", id)
}

const stockItemColumns = "id, name, category_id, quantity_brought, quantity_sold, price_per_unit, entry_cost, created_at, updated_at"

func (r *SQLiteRepository) ListStockItems(ctx context.Context) ([]core.StockItem, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+stockItemColumns+" FROM stock_items ORDER BY created_at DESC, name")
	if err != nil {
		return nil, mapError("list_stock_items", err)
	}
	defer rows.Close()

	var out []core.StockItem
	for rows.Next() {
		it, err := scanStockItem(rows)
		if err != nil {
			return nil, mapError("list_stock_items", err)
		}
		out = append(out, it)
	}
	return out, mapError("list_stock_items", rows.Err())
}

func (r *SQLiteRepository) InsertStockItem(ctx context.Context, in core.NewStockItem) (core.StockItem, error) {
	if err := in.Validate(); err != nil {
		return core.StockItem{}, err
	}
	ts := r.timestamp()
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO stock_items (id, name, category_id, quantity_brought, quantity_sold, price_per_unit, entry_cost, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+stockItemColumns,
		uuid.NewString(), strings.TrimSpace(in.Name), in.CategoryID, in.QuantityBrought, in.QuantitySold,
		core.FormatAmount(in.PricePerUnit), core.FormatAmount(in.EntryCost), ts, ts)
	it, err := scanStockItem(row)
	return it, mapError("insert_stock_item", err)
}

func (r *SQLiteRepository) UpdateStockItem(ctx context.Context, id string, p core.StockItemPatch) (core.StockItem, error) {
	if err := p.Validate(); err != nil {
		return core.StockItem{}, err
	}
	set := newSetClause()
	if p.Name != nil {
		set.add("name", strings.TrimSpace(*p.Name))
	}
	if p.CategoryID != nil {
		set.add("category_id", *p.CategoryID)
	}
	if p.QuantityBrought != nil {
		set.add("quantity_brought", *p.QuantityBrought)
	}
	if p.QuantitySold != nil {
		set.add("quantity_sold", *p.QuantitySold)
	}
	if p.PricePerUnit != nil {
		set.add("price_per_unit", core.FormatAmount(*p.PricePerUnit))
	}
	if p.EntryCost != nil {
		set.add("entry_cost", core.FormatAmount(*p.EntryCost))
	}
	set.add("updated_at", r.timestamp())

	query, args := set.update("stock_items", id, stockItemColumns)
	it, err := scanStockItem(r.db.QueryRowContext(ctx, query, args...))
	return it, mapError("update_stock_item", err)
}

func (r *SQLiteRepository) DeleteStockItem(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "delete_stock_item", "stock_items", id)
}

const moneyEntryColumns = "id, amount, type, description, category, created_at, updated_at"

func (r *SQLiteRepository) ListMoneyEntries(ctx context.Context) ([]core.MoneyEntry, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+moneyEntryColumns+" FROM money_entries ORDER BY created_at DESC")
	if err != nil {
		return nil, mapError("list_money_entries", err)
	}
	defer rows.Close()

	var out []core.MoneyEntry
	for rows.Next() {
		e, err := scanMoneyEntry(rows)
		if err != nil {
			return nil, mapError("list_money_entries", err)
		}
		out = append(out, e)
	}
	return out, mapError("list_money_entries", rows.Err())
}

func (r *SQLiteRepository) InsertMoneyEntry(ctx context.Context, in core.NewMoneyEntry) (core.MoneyEntry, error) {
	if err := in.Validate(); err != nil {
		return core.MoneyEntry{}, err
	}
	row := r.db.QueryRowContext(ctx,
		"INSERT INTO money_entries (id, amount, type, description, category, created_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING "+moneyEntryColumns,
		uuid.NewString(), core.FormatAmount(in.Amount), string(in.Type),
		strings.TrimSpace(in.Description), strings.TrimSpace(in.Category), r.timestamp())
	e, err := scanMoneyEntry(row)
	return e, mapError("insert_money_entry", err)
}

func (r *SQLiteRepository) UpdateMoneyEntry(ctx context.Context, id string, p core.MoneyEntryPatch) (core.MoneyEntry, error) {
	if err := p.Validate(); err != nil {
		return core.MoneyEntry{}, err
	}
	set := newSetClause()
	if p.Amount != nil {
		set.add("amount", core.FormatAmount(*p.Amount))
	}
	if p.Type != nil {
		set.add("type", string(*p.Type))
	}
	if p.Description != nil {
		set.add("description", strings.TrimSpace(*p.Description))
	}
	if p.Category != nil {
		set.add("category", strings.TrimSpace(*p.Category))
	}
	set.add("updated_at", r.timestamp())

	query, args := set.update("money_entries", id, moneyEntryColumns)
	e, err := scanMoneyEntry(r.db.QueryRowContext(ctx, query, args...))
	return e, mapError("update_money_entry", err)
}

func (r *SQLiteRepository) DeleteMoneyEntry(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "delete_money_entry", "money_entries", id)
}

func (r *SQLiteRepository) deleteByID(ctx context.Context, op, table, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return core.Errorf(core.KindNotFound, op, "record %s not found", id)
	}
	return nil
}

// setClause accumulates column assignments for an UPDATE.
type setClause struct {
	cols []string
	args []any
}

func newSetClause() *setClause { return &setClause{} }

func (s *setClause) add(col string, v any) {
	s.cols = append(s.cols, col+" = ?")
	s.args = append(s.args, v)
}

func (s *setClause) update(table, id, returning string) (string, []any) {
	q := "UPDATE " + table + " SET " + strings.Join(s.cols, ", ") + " WHERE id = ? RETURNING " + returning
	return q, append(s.args, id)
}
