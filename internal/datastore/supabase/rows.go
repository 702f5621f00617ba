package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"nedwiyt/internal/core"
)

// timestamp accepts both timestamptz and naive timestamp columns. Naive
// values are read as UTC.
type timestamp struct{ time.Time }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

type categoryRow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Color       *string   `json:"color"`
	CreatedAt   timestamp `json:"created_at"`
	UpdatedAt   timestamp `json:"updated_at"`
}

func (r categoryRow) toCore() core.Category {
	c := core.Category{
		ID:        r.ID,
		Name:      r.Name,
		Color:     core.DefaultCategoryColor,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
	if r.Description != nil {
		c.Description = *r.Description
	}
	if r.Color != nil && *r.Color != "" {
		c.Color = *r.Color
	}
	return c
}

type stockItemRow struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	CategoryID      string          `json:"category_id"`
	QuantityBrought int64           `json:"quantity_brought"`
	QuantitySold    int64           `json:"quantity_sold"`
	PricePerUnit    decimal.Decimal `json:"price_per_unit"`
	EntryCost       decimal.Decimal `json:"entry_cost"`
	CreatedAt       timestamp       `json:"created_at"`
	UpdatedAt       timestamp       `json:"updated_at"`
}

func (r stockItemRow) toCore() core.StockItem {
	return core.StockItem{
		ID:              r.ID,
		Name:            r.Name,
		CategoryID:      r.CategoryID,
		QuantityBrought: r.QuantityBrought,
		QuantitySold:    r.QuantitySold,
		PricePerUnit:    r.PricePerUnit,
		EntryCost:       r.EntryCost,
		CreatedAt:       r.CreatedAt.Time,
		UpdatedAt:       r.UpdatedAt.Time,
	}
}

type moneyEntryRow struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Category    *string         `json:"category"`
	CreatedAt   timestamp       `json:"created_at"`
	UpdatedAt   timestamp       `json:"updated_at"`
}

func (r moneyEntryRow) toCore() core.MoneyEntry {
	e := core.MoneyEntry{
		ID:          r.ID,
		Amount:      r.Amount,
		Type:        core.MoneyType(r.Type),
		Description: r.Description,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
	if r.Category != nil {
		e.Category = *r.Category
	}
	return e
}

// Request bodies. Patches only carry the columns being changed.

func categoryInsert(n core.NewCategory) map[string]any {
	return map[string]any{
		"name":        n.Name,
		"description": n.Description,
		"color":       n.Color,
	}
}

func categoryPatch(p core.CategoryPatch, now time.Time) map[string]any {
	m := map[string]any{"updated_at": now.UTC().Format(time.RFC3339Nano)}
	if p.Name != nil {
		m["name"] = *p.Name
	}
	if p.Description != nil {
		m["description"] = *p.Description
	}
	if p.Color != nil {
		m["color"] = *p.Color
	}
	return m
}

func stockItemInsert(n core.NewStockItem) map[string]any {
	return map[string]any{
		"name":             n.Name,
		"category_id":      n.CategoryID,
		"quantity_brought": n.QuantityBrought,
		"quantity_sold":    n.QuantitySold,
		"price_per_unit":   n.PricePerUnit,
		"entry_cost":       n.EntryCost,
	}
}

func stockItemPatch(p core.StockItemPatch, now time.Time) map[string]any {
	m := map[string]any{"updated_at": now.UTC().Format(time.RFC3339Nano)}
	if p.Name != nil {
		m["name"] = *p.Name
	}
	if p.CategoryID != nil {
		m["category_id"] = *p.CategoryID
	}
	if p.QuantityBrought != nil {
		m["quantity_brought"] = *p.QuantityBrought
	}
	if p.QuantitySold != nil {
		m["quantity_sold"] = *p.QuantitySold
	}
	if p.PricePerUnit != nil {
		m["price_per_unit"] = *p.PricePerUnit
	}
	if p.EntryCost != nil {
		m["entry_cost"] = *p.EntryCost
	}
	return m
}

func moneyEntryInsert(n core.NewMoneyEntry) map[string]any {
	return map[string]any{
		"amount":      n.Amount,
		"type":        string(n.Type),
		"description": n.Description,
		"category":    n.Category,
	}
}

func moneyEntryPatch(p core.MoneyEntryPatch, now time.Time) map[string]any {
	m := map[string]any{"updated_at": now.UTC().Format(time.RFC3339Nano)}
	if p.Amount != nil {
		m["amount"] = *p.Amount
	}
	if p.Type != nil {
		m["type"] = string(*p.Type)
	}
	if p.Description != nil {
		m["description"] = *p.Description
	}
	if p.Category != nil {
		m["category"] = *p.Category
	}
	return m
}
