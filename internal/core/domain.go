package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyType distinguishes the two sides of a legacy ledger entry.
type MoneyType string

const (
	Income  MoneyType = "income"
	Expense MoneyType = "expense"
)

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#22c55e"

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
)

type (
	Category struct {
		ID          string
		Name        string
		Description string
		Color       string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// StockItem is one purchased batch of a product. QuantitySold is a running
	// counter; UpdatedAt is the only record of when sales happened.
	StockItem struct {
		ID              string
		Name            string
		CategoryID      string
		QuantityBrought int64
		QuantitySold    int64
		PricePerUnit    decimal.Decimal
		EntryCost       decimal.Decimal // per unit
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	MoneyEntry struct {
		ID          string
		Amount      decimal.Decimal
		Type        MoneyType
		Description string
		Category    string // free text, optional
		CreatedAt   time.Time
		UpdatedAt   time.Time // zero when never edited
	}
)

// Inputs for create and update operations. Patch fields left nil are untouched.
type (
	NewCategory struct {
		Name        string
		Description string
		Color       string
	}

	CategoryPatch struct {
		Name        *string
		Description *string
		Color       *string
	}

	NewStockItem struct {
		Name            string
		CategoryID      string
		QuantityBrought int64
		QuantitySold    int64
		PricePerUnit    decimal.Decimal
		EntryCost       decimal.Decimal
	}

	StockItemPatch struct {
		Name            *string
		CategoryID      *string
		QuantityBrought *int64
		QuantitySold    *int64
		PricePerUnit    *decimal.Decimal
		EntryCost       *decimal.Decimal
	}

	NewMoneyEntry struct {
		Amount      decimal.Decimal
		Type        MoneyType
		Description string
		Category    string
	}

	MoneyEntryPatch struct {
		Amount      *decimal.Decimal
		Type        *MoneyType
		Description *string
		Category    *string
	}
)

func (t MoneyType) Valid() bool {
	return t == Income || t == Expense
}

// Normalize trims the text fields and fills in the default color.
func (n NewCategory) Normalize() NewCategory {
	n.Name = strings.TrimSpace(n.Name)
	n.Description = strings.TrimSpace(n.Description)
	n.Color = strings.TrimSpace(n.Color)
	if n.Color == "" {
		n.Color = DefaultCategoryColor
	}
	return n
}

func (n NewCategory) Validate() error {
	if err := validateName(n.Name); err != nil {
		return err
	}
	if len(n.Description) > maxDescriptionLength {
		return FieldError("description", "Description is too long (max 500 characters)")
	}
	if n.Color != "" && !ValidColor(n.Color) {
		return FieldError("color", "Color must be a hex value like #22c55e")
	}
	return nil
}

func (p CategoryPatch) Validate() error {
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Description != nil && len(*p.Description) > maxDescriptionLength {
		return FieldError("description", "Description is too long (max 500 characters)")
	}
	if p.Color != nil && !ValidColor(*p.Color) {
		return FieldError("color", "Color must be a hex value like #22c55e")
	}
	return nil
}

func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Color == nil
}

// Apply returns c with the patch applied. Timestamps are left to the caller.
func (p CategoryPatch) Apply(c Category) Category {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		c.Description = strings.TrimSpace(*p.Description)
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	return c
}

// ValidateRequired checks that every mandatory field is present.
func (n NewStockItem) ValidateRequired() error {
	if strings.TrimSpace(n.Name) == "" {
		return FieldError("name", "Item name is required")
	}
	if len(n.Name) > maxNameLength {
		return FieldError("name", "Name is too long (max 100 characters)")
	}
	if strings.TrimSpace(n.CategoryID) == "" {
		return FieldError("category_id", "Please select a category")
	}
	return nil
}

// ValidateNumbers checks the quantity and price rules.
func (n NewStockItem) ValidateNumbers() error {
	if n.QuantityBrought <= 0 {
		return FieldError("quantity_brought", "Quantity brought must be greater than 0")
	}
	if n.QuantitySold < 0 {
		return FieldError("quantity_sold", "Quantity sold cannot be negative")
	}
	if !n.PricePerUnit.IsPositive() {
		return FieldError("price_per_unit", "Price per unit must be greater than 0")
	}
	if n.EntryCost.IsNegative() {
		return FieldError("entry_cost", "Entry cost cannot be negative")
	}
	return nil
}

func (n NewStockItem) Validate() error {
	if err := n.ValidateRequired(); err != nil {
		return err
	}
	return n.ValidateNumbers()
}

func (p StockItemPatch) Validate() error {
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if p.CategoryID != nil && strings.TrimSpace(*p.CategoryID) == "" {
		return FieldError("category_id", "Please select a category")
	}
	if p.QuantityBrought != nil && *p.QuantityBrought <= 0 {
		return FieldError("quantity_brought", "Quantity brought must be greater than 0")
	}
	if p.QuantitySold != nil && *p.QuantitySold < 0 {
		return FieldError("quantity_sold", "Quantity sold cannot be negative")
	}
	if p.PricePerUnit != nil && !p.PricePerUnit.IsPositive() {
		return FieldError("price_per_unit", "Price per unit must be greater than 0")
	}
	if p.EntryCost != nil && p.EntryCost.IsNegative() {
		return FieldError("entry_cost", "Entry cost cannot be negative")
	}
	return nil
}

func (p StockItemPatch) IsEmpty() bool {
	return p.Name == nil && p.CategoryID == nil && p.QuantityBrought == nil &&
		p.QuantitySold == nil && p.PricePerUnit == nil && p.EntryCost == nil
}

func (p StockItemPatch) Apply(it StockItem) StockItem {
	if p.Name != nil {
		it.Name = strings.TrimSpace(*p.Name)
	}
	if p.CategoryID != nil {
		it.CategoryID = *p.CategoryID
	}
	if p.QuantityBrought != nil {
		it.QuantityBrought = *p.QuantityBrought
	}
	if p.QuantitySold != nil {
		it.QuantitySold = *p.QuantitySold
	}
	if p.PricePerUnit != nil {
		it.PricePerUnit = *p.PricePerUnit
	}
	if p.EntryCost != nil {
		it.EntryCost = *p.EntryCost
	}
	return it
}

func (n NewMoneyEntry) Validate() error {
	if !n.Amount.IsPositive() {
		return FieldError("amount", "Amount must be greater than 0")
	}
	if !n.Type.Valid() {
		return FieldError("type", "Type must be income or expense")
	}
	return validateDescription(n.Description)
}

func (p MoneyEntryPatch) Validate() error {
	if p.Amount != nil && !p.Amount.IsPositive() {
		return FieldError("amount", "Amount must be greater than 0")
	}
	if p.Type != nil && !p.Type.Valid() {
		return FieldError("type", "Type must be income or expense")
	}
	if p.Description != nil {
		return validateDescription(*p.Description)
	}
	return nil
}

func (p MoneyEntryPatch) Apply(e MoneyEntry) MoneyEntry {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		e.Category = strings.TrimSpace(*p.Category)
	}
	return e
}

// ValidColor accepts #rgb and #rrggbb hex tokens.
func ValidColor(s string) bool {
	if len(s) != 4 && len(s) != 7 {
		return false
	}
	if s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return FieldError("name", "Name is required")
	}
	if len(name) > maxNameLength {
		return FieldError("name", "Name is too long (max 100 characters)")
	}
	return nil
}

func validateDescription(desc string) error {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return FieldError("description", "Description is required")
	}
	if len(desc) > maxDescriptionLength {
		return FieldError("description", "Description is too long (max 500 characters)")
	}
	return nil
}
