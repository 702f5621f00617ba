package services

import (
	"slices"
	"strconv"
	"time"

	"nedwiyt/internal/core"
)

// Read accessors return copies; callers may keep or modify them freely.

func (s *InventoryState) Categories() []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories)
}

func (s *InventoryState) StockItems() []core.StockItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *InventoryState) MoneyEntries() []core.MoneyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Stats is the dashboard snapshot as of the last load or mutation.
func (s *InventoryState) Stats() core.DashboardStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Category looks up a loaded category by id.
func (s *InventoryState) Category(id string) (core.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.categories, func(c core.Category) bool { return c.ID == id })
	if i < 0 {
		return core.Category{}, false
	}
	return s.categories[i], true
}

// StockItem looks up a loaded stock item by id.
func (s *InventoryState) StockItem(id string) (core.StockItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.items, func(it core.StockItem) bool { return it.ID == id })
	if i < 0 {
		return core.StockItem{}, false
	}
	return s.items[i], true
}

func (s *InventoryState) BusinessStats(now time.Time) core.BusinessStats {
	return core.CalculateBusinessStats(s.StockItems(), now.In(s.loc))
}

func (s *InventoryState) MoneyStats(now time.Time) core.MoneyStats {
	return core.CalculateMoneyStats(s.MoneyEntries(), now.In(s.loc))
}

func (s *InventoryState) CategoryOverview() []core.CategorySummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CategoryOverview(s.categories, s.items, s.threshold)
}

func (s *InventoryState) TopItems(n int) []core.StockItem {
	return core.TopProfitItems(s.StockItems(), n)
}

func (s *InventoryState) LossItems(n int) []core.StockItem {
	return core.LossItems(s.StockItems(), n)
}

func (s *InventoryState) LowStockItems() []core.StockItem {
	return core.LowStockItems(s.StockItems(), s.threshold)
}

func containsCategory(cats []core.Category, id string) bool {
	return slices.ContainsFunc(cats, func(c core.Category) bool { return c.ID == id })
}

func countReferences(items []core.StockItem, categoryID string) int {
	n := 0
	for _, it := range items {
		if it.CategoryID == categoryID {
			n++
		}
	}
	return n
}

// upsert replaces the element with v's id, or appends v when another session
// created it since the last load.
func upsert[T any](list []T, v T, id func(T) string) []T {
	key := id(v)
	if i := slices.IndexFunc(list, func(x T) bool { return id(x) == key }); i >= 0 {
		out := slices.Clone(list)
		out[i] = v
		return out
	}
	return append(slices.Clone(list), v)
}

func remove[T any](list []T, key string, id func(T) string) []T {
	return slices.DeleteFunc(slices.Clone(list), func(x T) bool { return id(x) == key })
}

func formatInt(n int64) string { return strconv.FormatInt(n, 10) }
