package core

import "testing"

func TestCalculateDashboardStats(t *testing.T) {
	cats := []Category{{ID: "veg", Name: "Vegetables"}, {ID: "fruit", Name: "Fruit"}}
	items := []StockItem{
		item(100, 30, "5", "2"), // low? no (70)
		item(20, 15, "2", "1"),  // low (5)
		item(8, 0, "1", "0.5"),  // low (8)
	}

	s := CalculateDashboardStats(cats, items, DefaultLowStockThreshold)

	if s.TotalCategories != 2 || s.TotalItems != 3 {
		t.Errorf("counts = %d/%d, want 2/3", s.TotalCategories, s.TotalItems)
	}
	if !s.TotalRevenue.Equal(dec("180")) {
		t.Errorf("TotalRevenue = %s, want 180", s.TotalRevenue)
	}
	if !s.TotalCost.Equal(dec("224")) {
		t.Errorf("TotalCost = %s, want 224", s.TotalCost)
	}
	if !s.Profit.Equal(dec("105")) {
		t.Errorf("Profit = %s, want 105", s.Profit)
	}
	if s.LowStockItems != 2 {
		t.Errorf("LowStockItems = %d, want 2", s.LowStockItems)
	}
}

func TestCalculateDashboardStatsIdempotent(t *testing.T) {
	cats := []Category{{ID: "veg"}}
	items := []StockItem{item(10, 3, "1.10", "0.40"), item(5, 5, "2", "3")}

	first := CalculateDashboardStats(cats, items, 10)
	second := CalculateDashboardStats(cats, items, 10)
	if !first.Equal(second) {
		t.Errorf("recomputed stats differ: %+v vs %+v", first, second)
	}
}

func TestCategoryOverview(t *testing.T) {
	cats := []Category{{ID: "veg"}, {ID: "fruit"}, {ID: "empty"}}
	a := item(100, 30, "5", "2")
	b := item(50, 45, "1", "1")
	c := item(10, 0, "1", "1")
	a.CategoryID, b.CategoryID, c.CategoryID = "veg", "veg", "fruit"
	orphan := item(10, 0, "1", "1")
	orphan.CategoryID = "gone"

	out := CategoryOverview(cats, []StockItem{a, b, c, orphan}, DefaultLowStockThreshold)

	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	veg := out[0]
	if veg.ItemCount != 2 || veg.LowStockCount != 1 {
		t.Errorf("veg counts = %d/%d, want 2/1", veg.ItemCount, veg.LowStockCount)
	}
	// (70 + 5) / 150 = 50%
	if !veg.RemainingPercent.Equal(dec("50")) {
		t.Errorf("veg RemainingPercent = %s, want 50", veg.RemainingPercent)
	}
	if !out[1].RemainingPercent.Equal(dec("100")) {
		t.Errorf("fruit RemainingPercent = %s, want 100", out[1].RemainingPercent)
	}
	if out[2].ItemCount != 0 || !out[2].RemainingPercent.IsZero() {
		t.Errorf("empty category = %+v", out[2])
	}
}

func TestTopProfitAndLossItems(t *testing.T) {
	mk := func(id string, sold int64, price, cost string) StockItem {
		it := item(100, sold, price, cost)
		it.ID = id
		return it
	}
	items := []StockItem{
		mk("small", 1, "2", "1"),   // +1
		mk("big", 10, "5", "1"),    // +40
		mk("mid", 10, "2", "1"),    // +10
		mk("flat", 10, "1", "1"),   // 0
		mk("loss", 10, "1", "2"),   // -10
		mk("worst", 10, "1", "4"),  // -30
		mk("minor", 1, "1", "1.5"), // -0.5
		mk("unsold", 0, "1", "9"),  // 0
	}

	top := TopProfitItems(items, 2)
	if len(top) != 2 || top[0].ID != "big" || top[1].ID != "mid" {
		t.Errorf("TopProfitItems = %v", ids(top))
	}

	loss := LossItems(items, 3)
	if len(loss) != 3 || loss[0].ID != "worst" || loss[1].ID != "loss" || loss[2].ID != "minor" {
		t.Errorf("LossItems = %v", ids(loss))
	}

	if got := TopProfitItems(items, 10); len(got) != 3 {
		t.Errorf("TopProfitItems(10) len = %d, want 3", len(got))
	}
}

func TestLowStockItemsOrder(t *testing.T) {
	a := item(10, 2, "1", "1") // 8
	b := item(10, 9, "1", "1") // 1
	c := item(50, 0, "1", "1") // 50
	a.ID, b.ID, c.ID = "a", "b", "c"

	got := LowStockItems([]StockItem{a, b, c}, DefaultLowStockThreshold)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("LowStockItems = %v", ids(got))
	}
}

func ids(items []StockItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
