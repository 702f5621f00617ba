package core

import (
	"testing"
	"time"
)

func TestCalculateBusinessStatsEmpty(t *testing.T) {
	s := CalculateBusinessStats(nil, time.Now())

	for name, v := range map[string]interface{ IsZero() bool }{
		"DailyRevenue":    s.DailyRevenue,
		"MonthlyRevenue":  s.MonthlyRevenue,
		"TotalRevenue":    s.TotalRevenue,
		"TotalCosts":      s.TotalCosts,
		"TotalProfit":     s.TotalProfit,
		"TotalInvestment": s.TotalInvestment,
		"NetProfit":       s.NetProfit,
		"InventoryValue":  s.InventoryValue,
	} {
		if !v.IsZero() {
			t.Errorf("%s = %v, want 0", name, v)
		}
	}
	if s.TotalItemsSold != 0 || s.TotalItemsBought != 0 {
		t.Errorf("item counts = %d/%d, want 0/0", s.TotalItemsSold, s.TotalItemsBought)
	}
}

func TestCalculateBusinessStatsBuckets(t *testing.T) {
	now := time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)

	today := item(100, 30, "5", "2") // revenue 150, sold cost 60, total cost 200
	today.UpdatedAt = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

	earlier := item(10, 10, "3", "1") // revenue 30, sold cost 10, total cost 10
	earlier.UpdatedAt = time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

	lastYear := item(20, 5, "2", "1") // revenue 10, sold cost 5, total cost 20
	lastYear.UpdatedAt = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

	never := item(4, 0, "1", "0.5") // total cost 2
	s := CalculateBusinessStats([]StockItem{today, earlier, lastYear, never}, now)

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"DailyRevenue", s.DailyRevenue.String(), "150"},
		{"DailyCosts", s.DailyCosts.String(), "60"},
		{"DailyProfit", s.DailyProfit.String(), "90"},
		{"MonthlyRevenue", s.MonthlyRevenue.String(), "180"},
		{"MonthlyCosts", s.MonthlyCosts.String(), "70"},
		{"MonthlyProfit", s.MonthlyProfit.String(), "110"},
		{"TotalRevenue", s.TotalRevenue.String(), "190"},
		{"TotalCosts", s.TotalCosts.String(), "75"},
		{"TotalProfit", s.TotalProfit.String(), "115"},
		{"TotalInvestment", s.TotalInvestment.String(), "232"},
		{"NetProfit", s.NetProfit.String(), "-42"},
		{"InventoryValue", s.InventoryValue.String(), "157"},
	}
	for _, c := range checks {
		if !dec(c.got).Equal(dec(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if s.TotalItemsSold != 45 {
		t.Errorf("TotalItemsSold = %d, want 45", s.TotalItemsSold)
	}
	if s.TotalItemsBought != 134 {
		t.Errorf("TotalItemsBought = %d, want 134", s.TotalItemsBought)
	}
}

func TestCalculateBusinessStatsUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2025, 3, 16, 3, 0, 0, 0, loc)

	// 23:30 UTC on the 15th is 01:30 on the 16th in UTC+2.
	it := item(10, 2, "5", "1")
	it.UpdatedAt = time.Date(2025, 3, 15, 23, 30, 0, 0, time.UTC)

	s := CalculateBusinessStats([]StockItem{it}, now)
	if !s.DailyRevenue.Equal(dec("10")) {
		t.Errorf("DailyRevenue = %s, want 10", s.DailyRevenue)
	}

	s = CalculateBusinessStats([]StockItem{it}, now.UTC())
	if !s.DailyRevenue.IsZero() {
		t.Errorf("DailyRevenue in UTC = %s, want 0", s.DailyRevenue)
	}
}
