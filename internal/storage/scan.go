package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"nedwiyt/internal/core"
)

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func scanCategory(s scanner) (core.Category, error) {
	var (
		c                core.Category
		created, updated string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &created, &updated); err != nil {
		return core.Category{}, err
	}
	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return core.Category{}, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func scanStockItem(s scanner) (core.StockItem, error) {
	var (
		it               core.StockItem
		price, cost      decimal.Decimal
		created, updated string
	)
	if err := s.Scan(&it.ID, &it.Name, &it.CategoryID, &it.QuantityBrought, &it.QuantitySold,
		&price, &cost, &created, &updated); err != nil {
		return core.StockItem{}, err
	}
	it.PricePerUnit, it.EntryCost = price, cost
	var err error
	if it.CreatedAt, err = parseTime(created); err != nil {
		return core.StockItem{}, err
	}
	if it.UpdatedAt, err = parseTime(updated); err != nil {
		return core.StockItem{}, err
	}
	return it, nil
}

func scanMoneyEntry(s scanner) (core.MoneyEntry, error) {
	var (
		e       core.MoneyEntry
		typ     string
		created string
		updated sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Amount, &typ, &e.Description, &e.Category, &created, &updated); err != nil {
		return core.MoneyEntry{}, err
	}
	e.Type = core.MoneyType(typ)
	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return core.MoneyEntry{}, err
	}
	if e.UpdatedAt, err = parseTime(updated.String); err != nil {
		return core.MoneyEntry{}, err
	}
	return e, nil
}
