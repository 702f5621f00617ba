package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nedwiyt/internal/core"
)

func newParser(t *testing.T, body, contentType string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func formParser(t *testing.T, body string) *RequestBodyParser {
	return newParser(t, body, "application/x-www-form-urlencoded")
}

func TestRequestBodyParser_JSON(t *testing.T) {
	p := newParser(t, `{"id": "123", "quantity": 4, "name": "  Kale\u0007 "}`, "application/json")
	if !p.IsJSON() {
		t.Fatal("expected JSON body")
	}
	if got := p.Get("id"); got != "123" {
		t.Errorf("id = %q", got)
	}
	if got := p.Get("quantity"); got != "4" {
		t.Errorf("quantity = %q", got)
	}
	if got := p.Get("name"); got != "Kale" {
		t.Errorf("name = %q, want control characters stripped", got)
	}
	if p.Has("missing") || !p.Has("id") {
		t.Error("Has() mismatch")
	}
}

func TestRequestBodyParser_Form(t *testing.T) {
	p := formParser(t, "name=Carrots&description=")
	if p.IsJSON() {
		t.Fatal("form body detected as JSON")
	}
	if !p.Has("description") || p.Get("description") != "" {
		t.Error("an empty field must still count as sent")
	}
	if p.Has("color") {
		t.Error("color was not sent")
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id":`))
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Fatal("expected an error for truncated JSON")
	}
}

func TestParseNewStockItem(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		check     func(t *testing.T, in core.NewStockItem)
	}{
		{
			name: "full form",
			body: "name=Tomatoes&category_id=c1&quantity_brought=100&quantity_sold=30&price_per_unit=2,50&entry_cost=1.2",
			check: func(t *testing.T, in core.NewStockItem) {
				if in.QuantityBrought != 100 || in.QuantitySold != 30 {
					t.Errorf("quantities = %d/%d", in.QuantityBrought, in.QuantitySold)
				}
				if core.FormatAmount(in.PricePerUnit) != "2.50" || core.FormatAmount(in.EntryCost) != "1.20" {
					t.Errorf("amounts = %s/%s", in.PricePerUnit, in.EntryCost)
				}
			},
		},
		{
			name: "sold defaults to zero and cost may be zero",
			body: "name=Basil&category_id=c1&quantity_brought=5&price_per_unit=1&entry_cost=0",
			check: func(t *testing.T, in core.NewStockItem) {
				if in.QuantitySold != 0 || !in.EntryCost.IsZero() {
					t.Errorf("defaults = %d/%s", in.QuantitySold, in.EntryCost)
				}
			},
		},
		{name: "missing cost", body: "name=x&category_id=c1&quantity_brought=1&price_per_unit=1", wantField: "entry_cost"},
		{name: "blank cost", body: "name=x&category_id=c1&quantity_brought=1&price_per_unit=1&entry_cost=+", wantField: "entry_cost"},
		{name: "bad quantity", body: "name=x&category_id=c1&quantity_brought=ten&price_per_unit=1", wantField: "quantity_brought"},
		{name: "negative sold", body: "name=x&category_id=c1&quantity_brought=1&quantity_sold=-1&price_per_unit=1", wantField: "quantity_sold"},
		{name: "bad price", body: "name=x&category_id=c1&quantity_brought=1&price_per_unit=1e3", wantField: "price_per_unit"},
		{name: "bad cost", body: "name=x&category_id=c1&quantity_brought=1&price_per_unit=1&entry_cost=abc", wantField: "entry_cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseNewStockItem(formParser(t, tt.body))
			if tt.wantField != "" {
				assertFieldError(t, err, tt.wantField)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, in)
		})
	}
}

func TestParseStockItemPatch(t *testing.T) {
	patch, err := ParseStockItemPatch(formParser(t, "id=i1&quantity_sold=12&price_per_unit=3.10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Name != nil || patch.CategoryID != nil || patch.QuantityBrought != nil || patch.EntryCost != nil {
		t.Errorf("fields not sent must stay nil: %+v", patch)
	}
	if patch.QuantitySold == nil || *patch.QuantitySold != 12 {
		t.Errorf("quantity sold = %v", patch.QuantitySold)
	}
	if patch.PricePerUnit == nil || core.FormatAmount(*patch.PricePerUnit) != "3.10" {
		t.Errorf("price = %v", patch.PricePerUnit)
	}

	_, err = ParseStockItemPatch(formParser(t, "id=i1&entry_cost=free"))
	assertFieldError(t, err, "entry_cost")
}

func TestParseMoneyEntry(t *testing.T) {
	in, err := ParseNewMoneyEntry(formParser(t, "type=Income&amount=100&description=Market+day"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Type != core.Income || core.FormatAmount(in.Amount) != "100.00" || in.Description != "Market day" {
		t.Errorf("entry = %+v", in)
	}

	_, err = ParseNewMoneyEntry(formParser(t, "type=expense&amount=&description=x"))
	assertFieldError(t, err, "amount")

	patch, err := ParseMoneyEntryPatch(formParser(t, "id=m1&type=expense"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Type == nil || *patch.Type != core.Expense || patch.Amount != nil || patch.Description != nil {
		t.Errorf("patch = %+v", patch)
	}
}

func TestParseCategoryPatchAndID(t *testing.T) {
	p := formParser(t, "id=c1&color=%23ff0000")
	id, err := ParseID(p)
	if err != nil || id != "c1" {
		t.Fatalf("ParseID() = %q, %v", id, err)
	}
	patch := ParseCategoryPatch(p)
	if patch.Name != nil || patch.Color == nil || *patch.Color != "#ff0000" {
		t.Errorf("patch = %+v", patch)
	}

	_, err = ParseID(formParser(t, "name=x"))
	assertFieldError(t, err, "id")
}

func TestRequireMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if RequireMethod(req, http.MethodGet) != nil {
		t.Error("GET should be allowed")
	}
	resp := RequirePOST(req)
	if resp == nil {
		t.Fatal("GET should be rejected by RequirePOST")
	}
	rr := httptest.NewRecorder()
	resp.Write(rr)
	if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != "POST" {
		t.Errorf("status = %d, Allow = %q", rr.Code, rr.Header().Get("Allow"))
	}
}

func assertFieldError(t *testing.T, err error, field string) {
	t.Helper()
	ce, ok := err.(*core.Error)
	if !ok {
		t.Fatalf("expected *core.Error, got %T (%v)", err, err)
	}
	if ce.Kind != core.KindValidation || ce.Field != field {
		t.Errorf("error kind/field = %s/%s, want validation/%s", ce.Kind, ce.Field, field)
	}
}
