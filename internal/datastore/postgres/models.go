package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
)

type categoryModel struct {
	ID          string    `gorm:"primaryKey;type:uuid"`
	Name        string    `gorm:"not null"`
	Description string    `gorm:"not null;default:''"`
	Color       string    `gorm:"not null;default:'#22c55e'"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (categoryModel) TableName() string { return "categories" }

type stockItemModel struct {
	ID              string          `gorm:"primaryKey;type:uuid"`
	Name            string          `gorm:"not null"`
	CategoryID      string          `gorm:"type:uuid;not null;index"`
	Category        *categoryModel  `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT"`
	QuantityBrought int64           `gorm:"not null;check:quantity_brought >= 1"`
	QuantitySold    int64           `gorm:"not null;default:0;check:quantity_sold >= 0"`
	PricePerUnit    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	EntryCost       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null;index"`
}

func (stockItemModel) TableName() string { return "stock_items" }

type moneyEntryModel struct {
	ID          string          `gorm:"primaryKey;type:uuid"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Type        string          `gorm:"not null;check:type IN ('income','expense')"`
	Description string          `gorm:"not null"`
	Category    string          `gorm:"not null;default:''"`
	CreatedAt   time.Time       `gorm:"not null;index"`
	UpdatedAt   *time.Time      `gorm:"autoUpdateTime:false"`
}

func (moneyEntryModel) TableName() string { return "money_entries" }

type userModel struct {
	ID           string    `gorm:"primaryKey;type:uuid"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userModel) TableName() string { return "users" }

func (m categoryModel) toCore() core.Category {
	return core.Category{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Color:       m.Color,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func (m stockItemModel) toCore() core.StockItem {
	return core.StockItem{
		ID:              m.ID,
		Name:            m.Name,
		CategoryID:      m.CategoryID,
		QuantityBrought: m.QuantityBrought,
		QuantitySold:    m.QuantitySold,
		PricePerUnit:    m.PricePerUnit,
		EntryCost:       m.EntryCost,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

func (m moneyEntryModel) toCore() core.MoneyEntry {
	e := core.MoneyEntry{
		ID:          m.ID,
		Amount:      m.Amount,
		Type:        core.MoneyType(m.Type),
		Description: m.Description,
		Category:    m.Category,
		CreatedAt:   m.CreatedAt.UTC(),
	}
	if m.UpdatedAt != nil {
		e.UpdatedAt = m.UpdatedAt.UTC()
	}
	return e
}

func (m userModel) toUser() datastore.User {
	return datastore.User{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt.UTC()}
}
