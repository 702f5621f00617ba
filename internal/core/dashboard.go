package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DashboardStats is derived from the current collections and never stored.
type DashboardStats struct {
	TotalCategories int
	TotalItems      int
	TotalRevenue    decimal.Decimal
	TotalCost       decimal.Decimal
	Profit          decimal.Decimal
	LowStockItems   int
}

// CalculateDashboardStats is a pure function of its inputs.
func CalculateDashboardStats(categories []Category, items []StockItem, threshold int) DashboardStats {
	s := DashboardStats{
		TotalCategories: len(categories),
		TotalItems:      len(items),
	}
	for _, it := range items {
		s.TotalRevenue = s.TotalRevenue.Add(TradeValue(it))
		s.TotalCost = s.TotalCost.Add(TotalCost(it))
		s.Profit = s.Profit.Add(Profit(it))
		if IsLowStock(it, threshold) {
			s.LowStockItems++
		}
	}
	return s
}

// Equal compares two snapshots by value.
func (s DashboardStats) Equal(o DashboardStats) bool {
	return s.TotalCategories == o.TotalCategories &&
		s.TotalItems == o.TotalItems &&
		s.LowStockItems == o.LowStockItems &&
		s.TotalRevenue.Equal(o.TotalRevenue) &&
		s.TotalCost.Equal(o.TotalCost) &&
		s.Profit.Equal(o.Profit)
}

// CategorySummary is one row of the category overview.
type CategorySummary struct {
	Category         Category
	ItemCount        int
	LowStockCount    int
	Remaining        int64
	Brought          int64
	RemainingPercent decimal.Decimal // 0..100, one decimal place
}

// CategoryOverview summarises stock per category, in category order.
// Items pointing at an unknown category are skipped.
func CategoryOverview(categories []Category, items []StockItem, threshold int) []CategorySummary {
	index := make(map[string]int, len(categories))
	out := make([]CategorySummary, len(categories))
	for i, c := range categories {
		index[c.ID] = i
		out[i].Category = c
	}
	for _, it := range items {
		i, ok := index[it.CategoryID]
		if !ok {
			continue
		}
		out[i].ItemCount++
		out[i].Remaining += Remaining(it)
		out[i].Brought += it.QuantityBrought
		if IsLowStock(it, threshold) {
			out[i].LowStockCount++
		}
	}
	for i := range out {
		if out[i].Brought > 0 {
			out[i].RemainingPercent = decimal.NewFromInt(out[i].Remaining).
				Mul(hundred).
				Div(decimal.NewFromInt(out[i].Brought)).
				Round(1)
		}
	}
	return out
}

// TopProfitItems returns up to n items with positive profit, best first.
func TopProfitItems(items []StockItem, n int) []StockItem {
	out := filterItems(items, func(it StockItem) bool { return Profit(it).IsPositive() })
	sort.SliceStable(out, func(i, j int) bool { return Profit(out[i]).GreaterThan(Profit(out[j])) })
	return limit(out, n)
}

// LossItems returns up to n items with negative profit, largest loss first.
func LossItems(items []StockItem, n int) []StockItem {
	out := filterItems(items, func(it StockItem) bool { return Profit(it).IsNegative() })
	sort.SliceStable(out, func(i, j int) bool { return Profit(out[i]).LessThan(Profit(out[j])) })
	return limit(out, n)
}

// LowStockItems returns the flagged items, lowest remaining first.
func LowStockItems(items []StockItem, threshold int) []StockItem {
	out := filterItems(items, func(it StockItem) bool { return IsLowStock(it, threshold) })
	sort.SliceStable(out, func(i, j int) bool { return Remaining(out[i]) < Remaining(out[j]) })
	return out
}

func filterItems(items []StockItem, keep func(StockItem) bool) []StockItem {
	out := make([]StockItem, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func limit(items []StockItem, n int) []StockItem {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}
