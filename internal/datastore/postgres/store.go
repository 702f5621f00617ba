// Package postgres stores inventory rows in PostgreSQL through gorm.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
)

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ datastore.Store     = (*Store)(nil)
	_ datastore.UserStore = (*Store)(nil)
	_ datastore.Pinger    = (*Store)(nil)
)

// Open connects to dsn, sizes the pool, and migrates the schema.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := New(db)
	if err := s.Migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates or updates the tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&userModel{}, &categoryModel{}, &stockItemModel{}, &moneyEntryModel{}); err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return mapError("ping", err)
	}
	return mapError("ping", sqlDB.PingContext(ctx))
}

func (s *Store) stamp() time.Time { return s.now().UTC() }

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	var rows []categoryModel
	if err := s.db.WithContext(ctx).Order("created_at, name").Find(&rows).Error; err != nil {
		return nil, mapError("list_categories", err)
	}
	out := make([]core.Category, len(rows))
	for i, m := range rows {
		out[i] = m.toCore()
	}
	return out, nil
}

func (s *Store) InsertCategory(ctx context.Context, in core.NewCategory) (core.Category, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	now := s.stamp()
	m := categoryModel{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return core.Category{}, mapError("insert_category", err)
	}
	return m.toCore(), nil
}

func (s *Store) UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) (core.Category, error) {
	if err := p.Validate(); err != nil {
		return core.Category{}, err
	}
	cols := map[string]any{"updated_at": s.stamp()}
	if p.Name != nil {
		cols["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		cols["description"] = strings.TrimSpace(*p.Description)
	}
	if p.Color != nil {
		cols["color"] = *p.Color
	}
	var m categoryModel
	if err := s.updateAndFetch(ctx, "update_category", &m, id, cols); err != nil {
		return core.Category{}, err
	}
	return m.toCore(), nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "delete_category", &categoryModel{}, id)
}

func (s *Store) ListStockItems(ctx context.Context) ([]core.StockItem, error) {
	var rows []stockItemModel
	if err := s.db.WithContext(ctx).Order("created_at DESC, name").Find(&rows).Error; err != nil {
		return nil, mapError("list_stock_items", err)
	}
	out := make([]core.StockItem, len(rows))
	for i, m := range rows {
		out[i] = m.toCore()
	}
	return out, nil
}

func (s *Store) InsertStockItem(ctx context.Context, in core.NewStockItem) (core.StockItem, error) {
	if err := in.Validate(); err != nil {
		return core.StockItem{}, err
	}
	now := s.stamp()
	m := stockItemModel{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(in.Name),
		CategoryID:      in.CategoryID,
		QuantityBrought: in.QuantityBrought,
		QuantitySold:    in.QuantitySold,
		PricePerUnit:    in.PricePerUnit,
		EntryCost:       in.EntryCost,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.WithContext(ctx).Omit("Category").Create(&m).Error; err != nil {
		return core.StockItem{}, mapError("insert_stock_item", err)
	}
	return m.toCore(), nil
}

func (s *Store) UpdateStockItem(ctx context.Context, id string, p core.StockItemPatch) (core.StockItem, error) {
	if err := p.Validate(); err != nil {
		return core.StockItem{}, err
	}
	cols := map[string]any{"updated_at": s.stamp()}
	if p.Name != nil {
		cols["name"] = strings.TrimSpace(*p.Name)
	}
	if p.CategoryID != nil {
		cols["category_id"] = *p.CategoryID
	}
	if p.QuantityBrought != nil {
		cols["quantity_brought"] = *p.QuantityBrought
	}
	if p.QuantitySold != nil {
		cols["quantity_sold"] = *p.QuantitySold
	}
	if p.PricePerUnit != nil {
		cols["price_per_unit"] = *p.PricePerUnit
	}
	if p.EntryCost != nil {
		cols["entry_cost"] = *p.EntryCost
	}
	var m stockItemModel
	if err := s.updateAndFetch(ctx, "update_stock_item", &m, id, cols); err != nil {
		return core.StockItem{}, err
	}
	return m.toCore(), nil
}

func (s *Store) DeleteStockItem(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "delete_stock_item", &stockItemModel{}, id)
}

func (s *Store) ListMoneyEntries(ctx context.Context) ([]core.MoneyEntry, error) {
	var rows []moneyEntryModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, mapError("list_money_entries", err)
	}
	out := make([]core.MoneyEntry, len(rows))
	for i, m := range rows {
		out[i] = m.toCore()
	}
	return out, nil
}

func (s *Store) InsertMoneyEntry(ctx context.Context, in core.NewMoneyEntry) (core.MoneyEntry, error) {
	if err := in.Validate(); err != nil {
		return core.MoneyEntry{}, err
	}
	m := moneyEntryModel{
		ID:          uuid.NewString(),
		Amount:      in.Amount,
		Type:        string(in.Type),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		CreatedAt:   s.stamp(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return core.MoneyEntry{}, mapError("insert_money_entry", err)
	}
	return m.toCore(), nil
}

func (s *Store) UpdateMoneyEntry(ctx context.Context, id string, p core.MoneyEntryPatch) (core.MoneyEntry, error) {
	if err := p.Validate(); err != nil {
		return core.MoneyEntry{}, err
	}
	cols := map[string]any{"updated_at": s.stamp()}
	if p.Amount != nil {
		cols["amount"] = *p.Amount
	}
	if p.Type != nil {
		cols["type"] = string(*p.Type)
	}
	if p.Description != nil {
		cols["description"] = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		cols["category"] = strings.TrimSpace(*p.Category)
	}
	var m moneyEntryModel
	if err := s.updateAndFetch(ctx, "update_money_entry", &m, id, cols); err != nil {
		return core.MoneyEntry{}, err
	}
	return m.toCore(), nil
}

func (s *Store) DeleteMoneyEntry(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "delete_money_entry", &moneyEntryModel{}, id)
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (datastore.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return datastore.User{}, core.FieldError("email", "Email is required")
	}
	m := userModel{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, CreatedAt: s.stamp()}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return datastore.User{}, mapError("create_user", err)
	}
	return m.toUser(), nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (datastore.User, error) {
	var m userModel
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&m).Error
	if err != nil {
		return datastore.User{}, mapError("user_by_email", err)
	}
	return m.toUser(), nil
}

// updateAndFetch applies cols to the row with id and reloads it into dest.
func (s *Store) updateAndFetch(ctx context.Context, op string, dest any, id string, cols map[string]any) error {
	return mapError(op, s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(dest).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", id).First(dest).Error
	}))
}

func (s *Store) deleteByID(ctx context.Context, op string, model any, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return mapError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.Errorf(core.KindNotFound, op, "record %s not found", id)
	}
	return nil
}
