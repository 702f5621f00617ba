package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyStats rolls up legacy ledger entries by day, month and all time.
type MoneyStats struct {
	DailyIncome   decimal.Decimal
	DailyExpenses decimal.Decimal
	DailyProfit   decimal.Decimal

	MonthlyIncome   decimal.Decimal
	MonthlyExpenses decimal.Decimal
	MonthlyProfit   decimal.Decimal

	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	NetProfit     decimal.Decimal
}

// CalculateMoneyStats buckets entries by CreatedAt in now's location.
// Entries with an unknown type are ignored.
func CalculateMoneyStats(entries []MoneyEntry, now time.Time) MoneyStats {
	var s MoneyStats
	for _, e := range entries {
		month := sameMonth(e.CreatedAt, now)
		day := month && sameDay(e.CreatedAt, now)
		switch e.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(e.Amount)
			if month {
				s.MonthlyIncome = s.MonthlyIncome.Add(e.Amount)
			}
			if day {
				s.DailyIncome = s.DailyIncome.Add(e.Amount)
			}
		case Expense:
			s.TotalExpenses = s.TotalExpenses.Add(e.Amount)
			if month {
				s.MonthlyExpenses = s.MonthlyExpenses.Add(e.Amount)
			}
			if day {
				s.DailyExpenses = s.DailyExpenses.Add(e.Amount)
			}
		}
	}
	s.DailyProfit = s.DailyIncome.Sub(s.DailyExpenses)
	s.MonthlyProfit = s.MonthlyIncome.Sub(s.MonthlyExpenses)
	s.NetProfit = s.TotalIncome.Sub(s.TotalExpenses)
	return s
}

// EntryMoney is the all-time income shown on the legacy money screen.
func (s MoneyStats) EntryMoney() decimal.Decimal { return s.TotalIncome }

// UsedMoney is the all-time expenses.
func (s MoneyStats) UsedMoney() decimal.Decimal { return s.TotalExpenses }

// TotalMoney is income minus expenses.
func (s MoneyStats) TotalMoney() decimal.Decimal { return s.NetProfit }
