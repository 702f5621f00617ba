package core

import "github.com/shopspring/decimal"

// DefaultLowStockThreshold is the remaining quantity at or below which an
// item is flagged.
const DefaultLowStockThreshold = 10

// Remaining is max(0, brought - sold).
func Remaining(it StockItem) int64 {
	r := it.QuantityBrought - it.QuantitySold
	if r < 0 {
		return 0
	}
	return r
}

// TradeValue is the revenue realised from sold units.
func TradeValue(it StockItem) decimal.Decimal {
	return it.PricePerUnit.Mul(decimal.NewFromInt(it.QuantitySold))
}

// TotalCost is the acquisition cost of the whole batch.
func TotalCost(it StockItem) decimal.Decimal {
	return it.EntryCost.Mul(decimal.NewFromInt(it.QuantityBrought))
}

// SoldCost is the acquisition cost of the sold units only.
func SoldCost(it StockItem) decimal.Decimal {
	return it.EntryCost.Mul(decimal.NewFromInt(it.QuantitySold))
}

// Profit is TradeValue minus SoldCost. Unsold stock does not count against it.
func Profit(it StockItem) decimal.Decimal {
	return TradeValue(it).Sub(SoldCost(it))
}

// RemainingValue is the remaining stock valued at entry cost.
func RemainingValue(it StockItem) decimal.Decimal {
	return it.EntryCost.Mul(decimal.NewFromInt(Remaining(it)))
}

// IsLowStock reports remaining <= threshold.
func IsLowStock(it StockItem, threshold int) bool {
	return Remaining(it) <= int64(threshold)
}

func (it StockItem) Remaining() int64 { return Remaining(it) }
func (it StockItem) TradeValue() decimal.Decimal { return TradeValue(it) }
func (it StockItem) TotalCost() decimal.Decimal { return TotalCost(it) }
func (it StockItem) SoldCost() decimal.Decimal { return SoldCost(it) }
func (it StockItem) Profit() decimal.Decimal { return Profit(it) }
func (it StockItem) IsLowStock(threshold int) bool { return IsLowStock(it, threshold) }
func (it StockItem) RemainingValue() decimal.Decimal { return RemainingValue(it) }
