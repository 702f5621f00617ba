// This file reads request bodies (form or JSON, as HTMX may send either) and
// turns them into the core input types.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"nedwiyt/internal/core"
)

const maxBodyBytes = 64 << 10

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to 64 KiB.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}
	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		p.err = json.Unmarshal(p.body, &p.jsonData)
		return p.err
	}
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a trimmed, sanitized value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was sent at all, even empty.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod returns a 405 builder when the method is not one of methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// Inputs

// ParseID returns the id field or a validation error.
func ParseID(p *RequestBodyParser) (string, error) {
	id := p.Get("id")
	if id == "" {
		return "", core.FieldError("id", "Missing id")
	}
	return id, nil
}

func ParseNewCategory(p *RequestBodyParser) core.NewCategory {
	return core.NewCategory{
		Name:        p.Get("name"),
		Description: p.Get("description"),
		Color:       p.Get("color"),
	}
}

func ParseCategoryPatch(p *RequestBodyParser) core.CategoryPatch {
	return core.CategoryPatch{
		Name:        optString(p, "name"),
		Description: optString(p, "description"),
		Color:       optString(p, "color"),
	}
}

// ParseNewStockItem reads a stock item form. Quantity sold and entry cost
// default to zero when left empty.
func ParseNewStockItem(p *RequestBodyParser) (core.NewStockItem, error) {
	in := core.NewStockItem{
		Name:       p.Get("name"),
		CategoryID: p.Get("category_id"),
	}
	var err error
	if in.QuantityBrought, err = quantity(p, "quantity_brought", "Quantity brought must be a whole number"); err != nil {
		return in, err
	}
	if p.Get("quantity_sold") != "" {
		if in.QuantitySold, err = quantity(p, "quantity_sold", "Quantity sold must be a whole number"); err != nil {
			return in, err
		}
	}
	if in.PricePerUnit, err = amount(p, "price_per_unit", "Price per unit must be a number like 2.50"); err != nil {
		return in, err
	}
	// an explicit 0 is a valid cost; a blank field is not
	if strings.TrimSpace(p.Get("entry_cost")) == "" {
		return in, core.FieldError("entry_cost", "Entry cost is required. Enter 0 if the item cost nothing")
	}
	if in.EntryCost, err = amount(p, "entry_cost", "Entry cost must be a number like 1.20"); err != nil {
		return in, err
	}
	return in, nil
}

// ParseStockItemPatch sets only the fields present in the request.
func ParseStockItemPatch(p *RequestBodyParser) (core.StockItemPatch, error) {
	patch := core.StockItemPatch{
		Name:       optString(p, "name"),
		CategoryID: optString(p, "category_id"),
	}
	for _, f := range []struct {
		key, msg string
		dst      **int64
	}{
		{"quantity_brought", "Quantity brought must be a whole number", &patch.QuantityBrought},
		{"quantity_sold", "Quantity sold must be a whole number", &patch.QuantitySold},
	} {
		if !p.Has(f.key) {
			continue
		}
		n, err := quantity(p, f.key, f.msg)
		if err != nil {
			return patch, err
		}
		*f.dst = &n
	}
	for _, f := range []struct {
		key, msg string
		dst      **decimal.Decimal
	}{
		{"price_per_unit", "Price per unit must be a number like 2.50", &patch.PricePerUnit},
		{"entry_cost", "Entry cost must be a number like 1.20", &patch.EntryCost},
	} {
		if !p.Has(f.key) {
			continue
		}
		d, err := amount(p, f.key, f.msg)
		if err != nil {
			return patch, err
		}
		*f.dst = &d
	}
	return patch, nil
}

// ParseSaleQuantity reads the number of units sold.
func ParseSaleQuantity(p *RequestBodyParser) (int64, error) {
	return quantity(p, "quantity", "Quantity must be a whole number")
}

func ParseNewMoneyEntry(p *RequestBodyParser) (core.NewMoneyEntry, error) {
	in := core.NewMoneyEntry{
		Type:        core.MoneyType(strings.ToLower(p.Get("type"))),
		Description: p.Get("description"),
		Category:    p.Get("category"),
	}
	var err error
	in.Amount, err = amount(p, "amount", "Amount must be a number like 12.50")
	return in, err
}

func ParseMoneyEntryPatch(p *RequestBodyParser) (core.MoneyEntryPatch, error) {
	patch := core.MoneyEntryPatch{
		Description: optString(p, "description"),
		Category:    optString(p, "category"),
	}
	if p.Has("type") {
		t := core.MoneyType(strings.ToLower(p.Get("type")))
		patch.Type = &t
	}
	if p.Has("amount") {
		d, err := amount(p, "amount", "Amount must be a number like 12.50")
		if err != nil {
			return patch, err
		}
		patch.Amount = &d
	}
	return patch, nil
}

func optString(p *RequestBodyParser, key string) *string {
	if !p.Has(key) {
		return nil
	}
	v := p.Get(key)
	return &v
}

func quantity(p *RequestBodyParser, key, msg string) (int64, error) {
	n, err := core.ParseQuantity(p.Get(key))
	if err != nil {
		return 0, core.FieldError(key, msg)
	}
	return n, nil
}

func amount(p *RequestBodyParser, key, msg string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(p.Get(key))
	if err != nil {
		return decimal.Zero, core.FieldError(key, msg)
	}
	return d, nil
}
