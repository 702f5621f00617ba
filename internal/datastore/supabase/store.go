package supabase

import (
	"context"
	"net/http"
	"net/url"

	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
)

const (
	tableCategories   = "categories"
	tableStockItems   = "stock_items"
	tableMoneyEntries = "money_entries"
)

// restStore is a PostgREST client bound to one user's access token.
type restStore struct {
	c     *Client
	token string
}

var _ datastore.Store = (*restStore)(nil)

func (s *restStore) list(ctx context.Context, op, table, order string, out any) error {
	q := url.Values{"select": {"*"}, "order": {order}}
	return s.c.do(ctx, op, http.MethodGet, "/rest/v1/"+table, q, s.token, nil, out)
}

// write sends an insert or a patch and expects exactly one returned row.
func (s *restStore) write(ctx context.Context, op, method, table, id string, body any, out any) error {
	var q url.Values
	if id != "" {
		q = url.Values{"id": {"eq." + id}, "select": {"*"}}
	}
	return s.c.do(ctx, op, method, "/rest/v1/"+table, q, s.token, body, out)
}

func (s *restStore) remove(ctx context.Context, op, table, id string) error {
	var rows []struct {
		ID string `json:"id"`
	}
	q := url.Values{"id": {"eq." + id}, "select": {"id"}}
	if err := s.c.do(ctx, op, http.MethodDelete, "/rest/v1/"+table, q, s.token, nil, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return notFound(op, id)
	}
	return nil
}

func (s *restStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	var rows []categoryRow
	if err := s.list(ctx, "list_categories", tableCategories, "name.asc", &rows); err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (s *restStore) InsertCategory(ctx context.Context, c core.NewCategory) (core.Category, error) {
	const op = "create_category"
	var rows []categoryRow
	if err := s.write(ctx, op, http.MethodPost, tableCategories, "", categoryInsert(c), &rows); err != nil {
		return core.Category{}, err
	}
	if len(rows) == 0 {
		return core.Category{}, emptyResult(op)
	}
	return rows[0].toCore(), nil
}

func (s *restStore) UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) (core.Category, error) {
	const op = "update_category"
	var rows []categoryRow
	if err := s.write(ctx, op, http.MethodPatch, tableCategories, id, categoryPatch(p, s.c.now()), &rows); err != nil {
		return core.Category{}, err
	}
	if len(rows) == 0 {
		return core.Category{}, notFound(op, id)
	}
	return rows[0].toCore(), nil
}

func (s *restStore) DeleteCategory(ctx context.Context, id string) error {
	return s.remove(ctx, "delete_category", tableCategories, id)
}

func (s *restStore) ListStockItems(ctx context.Context) ([]core.StockItem, error) {
	var rows []stockItemRow
	if err := s.list(ctx, "list_stock_items", tableStockItems, "created_at.desc", &rows); err != nil {
		return nil, err
	}
	out := make([]core.StockItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (s *restStore) InsertStockItem(ctx context.Context, it core.NewStockItem) (core.StockItem, error) {
	const op = "create_stock_item"
	var rows []stockItemRow
	if err := s.write(ctx, op, http.MethodPost, tableStockItems, "", stockItemInsert(it), &rows); err != nil {
		return core.StockItem{}, err
	}
	if len(rows) == 0 {
		return core.StockItem{}, emptyResult(op)
	}
	return rows[0].toCore(), nil
}

func (s *restStore) UpdateStockItem(ctx context.Context, id string, p core.StockItemPatch) (core.StockItem, error) {
	const op = "update_stock_item"
	var rows []stockItemRow
	if err := s.write(ctx, op, http.MethodPatch, tableStockItems, id, stockItemPatch(p, s.c.now()), &rows); err != nil {
		return core.StockItem{}, err
	}
	if len(rows) == 0 {
		return core.StockItem{}, notFound(op, id)
	}
	return rows[0].toCore(), nil
}

func (s *restStore) DeleteStockItem(ctx context.Context, id string) error {
	return s.remove(ctx, "delete_stock_item", tableStockItems, id)
}

func (s *restStore) ListMoneyEntries(ctx context.Context) ([]core.MoneyEntry, error) {
	var rows []moneyEntryRow
	if err := s.list(ctx, "list_money_entries", tableMoneyEntries, "created_at.desc", &rows); err != nil {
		return nil, err
	}
	out := make([]core.MoneyEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (s *restStore) InsertMoneyEntry(ctx context.Context, e core.NewMoneyEntry) (core.MoneyEntry, error) {
	const op = "create_money_entry"
	var rows []moneyEntryRow
	if err := s.write(ctx, op, http.MethodPost, tableMoneyEntries, "", moneyEntryInsert(e), &rows); err != nil {
		return core.MoneyEntry{}, err
	}
	if len(rows) == 0 {
		return core.MoneyEntry{}, emptyResult(op)
	}
	return rows[0].toCore(), nil
}

func (s *restStore) UpdateMoneyEntry(ctx context.Context, id string, p core.MoneyEntryPatch) (core.MoneyEntry, error) {
	const op = "update_money_entry"
	var rows []moneyEntryRow
	if err := s.write(ctx, op, http.MethodPatch, tableMoneyEntries, id, moneyEntryPatch(p, s.c.now()), &rows); err != nil {
		return core.MoneyEntry{}, err
	}
	if len(rows) == 0 {
		return core.MoneyEntry{}, notFound(op, id)
	}
	return rows[0].toCore(), nil
}

func (s *restStore) DeleteMoneyEntry(ctx context.Context, id string) error {
	return s.remove(ctx, "delete_money_entry", tableMoneyEntries, id)
}

// An insert that returns no row was filtered by a row-level security policy.
func emptyResult(op string) error {
	return core.Errorf(core.KindPermission, op, "the database accepted the insert but returned no row")
}

func notFound(op, id string) error {
	return core.Errorf(core.KindNotFound, op, "record %s not found or not visible to this account", id)
}
