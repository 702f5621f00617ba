package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// BusinessStats is the revenue and cost roll-up shown on the dashboard.
//
// Daily and monthly buckets attribute an item's whole trade value to the
// period of its last update, since there is no per-sale history.
type BusinessStats struct {
	DailyRevenue decimal.Decimal
	DailyCosts   decimal.Decimal
	DailyProfit  decimal.Decimal

	MonthlyRevenue decimal.Decimal
	MonthlyCosts   decimal.Decimal
	MonthlyProfit  decimal.Decimal

	TotalRevenue decimal.Decimal
	TotalCosts   decimal.Decimal
	TotalProfit  decimal.Decimal

	TotalInvestment decimal.Decimal
	NetProfit       decimal.Decimal

	TotalItemsSold   int64
	TotalItemsBought int64
	InventoryValue   decimal.Decimal
}

// CalculateBusinessStats aggregates items. Day and month boundaries are taken
// in now's location.
func CalculateBusinessStats(items []StockItem, now time.Time) BusinessStats {
	var s BusinessStats
	for _, it := range items {
		revenue := TradeValue(it)
		cost := SoldCost(it)
		profit := revenue.Sub(cost)

		s.TotalRevenue = s.TotalRevenue.Add(revenue)
		s.TotalCosts = s.TotalCosts.Add(cost)
		s.TotalProfit = s.TotalProfit.Add(profit)
		s.TotalInvestment = s.TotalInvestment.Add(TotalCost(it))
		s.InventoryValue = s.InventoryValue.Add(RemainingValue(it))
		s.TotalItemsSold += it.QuantitySold
		s.TotalItemsBought += it.QuantityBrought

		if sameMonth(it.UpdatedAt, now) {
			s.MonthlyRevenue = s.MonthlyRevenue.Add(revenue)
			s.MonthlyCosts = s.MonthlyCosts.Add(cost)
			s.MonthlyProfit = s.MonthlyProfit.Add(profit)
			if sameDay(it.UpdatedAt, now) {
				s.DailyRevenue = s.DailyRevenue.Add(revenue)
				s.DailyCosts = s.DailyCosts.Add(cost)
				s.DailyProfit = s.DailyProfit.Add(profit)
			}
		}
	}
	s.NetProfit = s.TotalRevenue.Sub(s.TotalInvestment)
	return s
}

func sameMonth(t, now time.Time) bool {
	if t.IsZero() {
		return false
	}
	t = t.In(now.Location())
	return t.Year() == now.Year() && t.Month() == now.Month()
}

func sameDay(t, now time.Time) bool {
	return sameMonth(t, now) && t.In(now.Location()).Day() == now.Day()
}
