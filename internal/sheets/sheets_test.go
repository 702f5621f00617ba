package sheets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"nedwiyt/internal/core"
)

func snapshotFixture() Snapshot {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	cats := []core.Category{
		{ID: "c1", Name: "Fruit", Color: "green"},
		{ID: "c2", Name: "Greens", Description: "leafy", Color: "emerald"},
	}
	items := []core.StockItem{
		{
			ID: "i1", Name: "Apples", CategoryID: "c1",
			QuantityBrought: 100, QuantitySold: 30,
			PricePerUnit: decimal.RequireFromString("5"), EntryCost: decimal.RequireFromString("2"),
			UpdatedAt: now,
		},
		{
			ID: "i2", Name: "Kale", CategoryID: "gone",
			QuantityBrought: 10, QuantitySold: 4,
			PricePerUnit: decimal.RequireFromString("1.5"), EntryCost: decimal.RequireFromString("2"),
		},
	}
	return NewSnapshot(cats, items, core.DefaultLowStockThreshold, now)
}

func TestInventoryRows(t *testing.T) {
	rows := InventoryRows(snapshotFixture())
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if len(rows[0]) != len(rows[1]) {
		t.Fatalf("header has %d columns, row has %d", len(rows[0]), len(rows[1]))
	}

	apples := rows[1]
	tests := []struct {
		col  int
		want any
	}{
		{2, "Fruit"},
		{5, int64(70)},
		{8, "150.00"},
		{9, "200.00"},
		{10, "90.00"},
		{11, "no"},
		{12, "2025-03-14 12:00:00"},
	}
	for _, tt := range tests {
		if apples[tt.col] != tt.want {
			t.Errorf("column %v: got %v, want %v", inventoryHeader[tt.col], apples[tt.col], tt.want)
		}
	}

	kale := rows[2]
	if kale[2] != "gone" {
		t.Errorf("unknown category should fall back to id, got %v", kale[2])
	}
	if kale[10] != "-2.00" {
		t.Errorf("kale profit = %v, want -2.00", kale[10])
	}
	if kale[11] != "yes" {
		t.Errorf("kale should be low stock")
	}
	if kale[12] != "" {
		t.Errorf("zero update time should render empty, got %v", kale[12])
	}
}

func TestCategoryRows(t *testing.T) {
	rows := CategoryRows(snapshotFixture())
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][1] != "Fruit" || rows[1][4] != 1 || rows[1][6] != "70.0" {
		t.Errorf("unexpected fruit row: %v", rows[1])
	}
	if rows[2][4] != 0 || rows[2][6] != "0.0" {
		t.Errorf("empty category should have no items and 0%%: %v", rows[2])
	}
}

func TestSummaryRows(t *testing.T) {
	rows := SummaryRows(snapshotFixture())
	got := map[any]any{}
	for _, r := range rows[1:] {
		got[r[0]] = r[1]
	}
	want := map[string]any{
		"Categories":       2,
		"Items":            2,
		"Low stock items":  1,
		"Daily revenue":    "150.00",
		"Total revenue":    "156.00",
		"Total investment": "220.00",
		"Items sold":       int64(34),
		"Items bought":     int64(110),
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: got %v, want %v", k, got[k], v)
		}
	}
}

func TestTabsOrder(t *testing.T) {
	tabs := snapshotFixture().Tabs()
	names := []string{InventoryTab, CategoriesTab, SummaryTab}
	if len(tabs) != len(names) {
		t.Fatalf("expected %d tabs, got %d", len(names), len(tabs))
	}
	for i, n := range names {
		if tabs[i].Name != n {
			t.Errorf("tab %d: got %s, want %s", i, tabs[i].Name, n)
		}
	}
}
