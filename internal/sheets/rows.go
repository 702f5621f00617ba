package sheets

import (
	"time"

	"nedwiyt/internal/core"
)

var (
	inventoryHeader = []any{
		"ID", "Name", "Category", "Brought", "Sold", "Remaining",
		"Price", "Entry cost", "Trade value", "Total cost", "Profit", "Low stock", "Updated",
	}
	categoriesHeader = []any{
		"ID", "Name", "Description", "Color", "Items", "Low stock", "Remaining %",
	}
)

// Tab is one named sheet worth of rows, header first.
type Tab struct {
	Name string
	Rows [][]any
}

// Tabs renders the snapshot in the order exporters write it.
func (s Snapshot) Tabs() []Tab {
	return []Tab{
		{Name: InventoryTab, Rows: InventoryRows(s)},
		{Name: CategoriesTab, Rows: CategoryRows(s)},
		{Name: SummaryTab, Rows: SummaryRows(s)},
	}
}

// InventoryRows lists every stock item with its derived metrics. Category
// ids are resolved to names; unknown ids are written as-is.
func InventoryRows(s Snapshot) [][]any {
	names := make(map[string]string, len(s.Categories))
	for _, c := range s.Categories {
		names[c.ID] = c.Name
	}
	rows := make([][]any, 0, len(s.Items)+1)
	rows = append(rows, inventoryHeader)
	for _, it := range s.Items {
		category, ok := names[it.CategoryID]
		if !ok {
			category = it.CategoryID
		}
		rows = append(rows, []any{
			it.ID,
			it.Name,
			category,
			it.QuantityBrought,
			it.QuantitySold,
			it.Remaining(),
			core.FormatAmount(it.PricePerUnit),
			core.FormatAmount(it.EntryCost),
			core.FormatAmount(it.TradeValue()),
			core.FormatAmount(it.TotalCost()),
			core.FormatAmount(it.Profit()),
			yesNo(it.IsLowStock(s.Threshold)),
			timestamp(it.UpdatedAt),
		})
	}
	return rows
}

// CategoryRows lists categories with the dashboard overview figures.
func CategoryRows(s Snapshot) [][]any {
	overview := core.CategoryOverview(s.Categories, s.Items, s.Threshold)
	rows := make([][]any, 0, len(overview)+1)
	rows = append(rows, categoriesHeader)
	for _, o := range overview {
		rows = append(rows, []any{
			o.Category.ID,
			o.Category.Name,
			o.Category.Description,
			o.Category.Color,
			o.ItemCount,
			o.LowStockCount,
			o.RemainingPercent.StringFixed(1),
		})
	}
	return rows
}

// SummaryRows is a two-column metric/value table.
func SummaryRows(s Snapshot) [][]any {
	b, d := s.Business, s.Dashboard
	return [][]any{
		{"Metric", "Value"},
		{"Exported at", timestamp(s.TakenAt)},
		{"Categories", d.TotalCategories},
		{"Items", d.TotalItems},
		{"Low stock items", d.LowStockItems},
		{"Daily revenue", core.FormatAmount(b.DailyRevenue)},
		{"Daily costs", core.FormatAmount(b.DailyCosts)},
		{"Daily profit", core.FormatAmount(b.DailyProfit)},
		{"Monthly revenue", core.FormatAmount(b.MonthlyRevenue)},
		{"Monthly costs", core.FormatAmount(b.MonthlyCosts)},
		{"Monthly profit", core.FormatAmount(b.MonthlyProfit)},
		{"Total revenue", core.FormatAmount(b.TotalRevenue)},
		{"Total costs", core.FormatAmount(b.TotalCosts)},
		{"Total profit", core.FormatAmount(b.TotalProfit)},
		{"Total investment", core.FormatAmount(b.TotalInvestment)},
		{"Net profit", core.FormatAmount(b.NetProfit)},
		{"Items sold", b.TotalItemsSold},
		{"Items bought", b.TotalItemsBought},
		{"Inventory value", core.FormatAmount(b.InventoryValue)},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
