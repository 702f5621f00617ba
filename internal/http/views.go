package http

import (
	"github.com/shopspring/decimal"

	"nedwiyt/internal/core"
	"nedwiyt/internal/services"
	"nedwiyt/internal/websocket"
)

// Template data. Partials are rendered both inside the dashboard page and
// on their own under /ui/{name}.

type statsView struct {
	core.DashboardStats
	Threshold int
}

type categoriesView struct {
	Rows []core.CategorySummary
}

type itemRow struct {
	core.StockItem
	CategoryName string
	Low          bool
}

type itemsView struct {
	Rows       []itemRow
	Categories []core.Category
	Threshold  int
}

type moneyView struct {
	Entries []core.MoneyEntry
	Stats   core.MoneyStats
}

type overviewView struct {
	Categories []core.CategorySummary
	Top        []core.StockItem
	Losses     []core.StockItem
	LowStock   []core.StockItem
	Threshold  int
}

type dashboardPage struct {
	Email      string
	Stats      statsView
	Business   core.BusinessStats
	Categories categoriesView
	Items      itemsView
	Money      moneyView
	Overview   overviewView
}

type loginPage struct {
	Email string
	Error string
}

// partials maps each /ui/{name} route to the data its template renders.
var partials = map[string]func(*services.InventoryState) any{
	"stats":      func(st *services.InventoryState) any { return newStatsView(st) },
	"business":   func(st *services.InventoryState) any { return st.BusinessStats(st.Now()) },
	"categories": func(st *services.InventoryState) any { return newCategoriesView(st) },
	"items":      func(st *services.InventoryState) any { return newItemsView(st) },
	"money":      func(st *services.InventoryState) any { return newMoneyView(st) },
	"overview":   func(st *services.InventoryState) any { return newOverviewView(st) },
}

func newStatsView(st *services.InventoryState) statsView {
	return statsView{DashboardStats: st.Stats(), Threshold: st.Threshold()}
}

func newCategoriesView(st *services.InventoryState) categoriesView {
	return categoriesView{Rows: st.CategoryOverview()}
}

func newItemsView(st *services.InventoryState) itemsView {
	cats := st.Categories()
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	threshold := st.Threshold()
	items := st.StockItems()
	rows := make([]itemRow, 0, len(items))
	for _, it := range items {
		name, ok := names[it.CategoryID]
		if !ok {
			name = "Unknown category"
		}
		rows = append(rows, itemRow{StockItem: it, CategoryName: name, Low: it.IsLowStock(threshold)})
	}
	return itemsView{Rows: rows, Categories: cats, Threshold: threshold}
}

func newMoneyView(st *services.InventoryState) moneyView {
	return moneyView{Entries: st.MoneyEntries(), Stats: st.MoneyStats(st.Now())}
}

func newOverviewView(st *services.InventoryState) overviewView {
	return overviewView{
		Categories: st.CategoryOverview(),
		Top:        st.TopItems(5),
		Losses:     st.LossItems(5),
		LowStock:   st.LowStockItems(),
		Threshold:  st.Threshold(),
	}
}

func newDashboardPage(st *services.InventoryState) dashboardPage {
	page := dashboardPage{
		Stats:      newStatsView(st),
		Business:   st.BusinessStats(st.Now()),
		Categories: newCategoriesView(st),
		Items:      newItemsView(st),
		Money:      newMoneyView(st),
		Overview:   newOverviewView(st),
	}
	if session, ok := st.Session(); ok {
		page.Email = session.Email
	}
	return page
}

// JSON shapes for /api/stats. Amounts are strings with two decimals.

type statsResponse struct {
	Dashboard websocket.Stats `json:"dashboard"`
	Business  businessJSON    `json:"business"`
	Money     moneyJSON       `json:"money"`
}

type businessJSON struct {
	DailyRevenue     string `json:"daily_revenue"`
	DailyCosts       string `json:"daily_costs"`
	DailyProfit      string `json:"daily_profit"`
	MonthlyRevenue   string `json:"monthly_revenue"`
	MonthlyCosts     string `json:"monthly_costs"`
	MonthlyProfit    string `json:"monthly_profit"`
	TotalRevenue     string `json:"total_revenue"`
	TotalCosts       string `json:"total_costs"`
	TotalProfit      string `json:"total_profit"`
	TotalInvestment  string `json:"total_investment"`
	NetProfit        string `json:"net_profit"`
	TotalItemsSold   int64  `json:"total_items_sold"`
	TotalItemsBought int64  `json:"total_items_bought"`
	InventoryValue   string `json:"inventory_value"`
}

type moneyJSON struct {
	DailyIncome     string `json:"daily_income"`
	DailyExpenses   string `json:"daily_expenses"`
	DailyProfit     string `json:"daily_profit"`
	MonthlyIncome   string `json:"monthly_income"`
	MonthlyExpenses string `json:"monthly_expenses"`
	MonthlyProfit   string `json:"monthly_profit"`
	TotalIncome     string `json:"total_income"`
	TotalExpenses   string `json:"total_expenses"`
	NetProfit       string `json:"net_profit"`
}

func newStatsResponse(st *services.InventoryState) statsResponse {
	now := st.Now()
	b := st.BusinessStats(now)
	m := st.MoneyStats(now)
	f := func(d decimal.Decimal) string { return core.FormatAmount(d) }
	return statsResponse{
		Dashboard: websocket.NewStats(st.Stats()),
		Business: businessJSON{
			DailyRevenue:     f(b.DailyRevenue),
			DailyCosts:       f(b.DailyCosts),
			DailyProfit:      f(b.DailyProfit),
			MonthlyRevenue:   f(b.MonthlyRevenue),
			MonthlyCosts:     f(b.MonthlyCosts),
			MonthlyProfit:    f(b.MonthlyProfit),
			TotalRevenue:     f(b.TotalRevenue),
			TotalCosts:       f(b.TotalCosts),
			TotalProfit:      f(b.TotalProfit),
			TotalInvestment:  f(b.TotalInvestment),
			NetProfit:        f(b.NetProfit),
			TotalItemsSold:   b.TotalItemsSold,
			TotalItemsBought: b.TotalItemsBought,
			InventoryValue:   f(b.InventoryValue),
		},
		Money: moneyJSON{
			DailyIncome:     f(m.DailyIncome),
			DailyExpenses:   f(m.DailyExpenses),
			DailyProfit:     f(m.DailyProfit),
			MonthlyIncome:   f(m.MonthlyIncome),
			MonthlyExpenses: f(m.MonthlyExpenses),
			MonthlyProfit:   f(m.MonthlyProfit),
			TotalIncome:     f(m.TotalIncome),
			TotalExpenses:   f(m.TotalExpenses),
			NetProfit:       f(m.NetProfit),
		},
	}
}
