// Package sheets turns an inventory snapshot into spreadsheet tabs and
// defines the port the export worker writes through.
package sheets

import (
	"context"
	"time"

	"nedwiyt/internal/core"
)

// Tab names written by every exporter.
const (
	InventoryTab  = "Inventory"
	CategoriesTab = "Categories"
	SummaryTab    = "Summary"
)

// Snapshot is everything one export writes.
type Snapshot struct {
	Categories []core.Category
	Items      []core.StockItem
	Dashboard  core.DashboardStats
	Business   core.BusinessStats
	Threshold  int
	TakenAt    time.Time
}

// NewSnapshot derives the statistics for categories and items at now.
func NewSnapshot(categories []core.Category, items []core.StockItem, threshold int, now time.Time) Snapshot {
	return Snapshot{
		Categories: categories,
		Items:      items,
		Dashboard:  core.CalculateDashboardStats(categories, items, threshold),
		Business:   core.CalculateBusinessStats(items, now),
		Threshold:  threshold,
		TakenAt:    now,
	}
}

// Exporter writes a snapshot somewhere durable and returns a reference to
// what it wrote.
type Exporter interface {
	Export(ctx context.Context, s Snapshot) (ref string, err error)
}
