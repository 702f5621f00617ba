package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nedwiyt/internal/core"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Body([]byte("test")).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Error("Custom header not set")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("no triggers were added")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerChanged(EventItemsChanged, "i1").
		TriggerFormReset().
		TriggerSuccessNotification("Saved").
		Write(w)

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	for _, name := range []string{EventItemsChanged, EventStatsChanged, EventFormReset, "show-notification"} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("HX-Trigger missing %q", name)
		}
	}
	if got := string(triggers[EventItemsChanged]); got != `{"id":"i1"}` {
		t.Errorf("items event = %s", got)
	}
	if got := string(triggers["show-notification"]); !strings.Contains(got, `"type":"success"`) || !strings.Contains(got, `"duration":3000`) {
		t.Errorf("notification = %s", got)
	}
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind core.Kind
		want int
	}{
		{core.KindValidation, http.StatusUnprocessableEntity},
		{core.KindReferential, http.StatusConflict},
		{core.KindIntegrity, http.StatusConflict},
		{core.KindPermission, http.StatusForbidden},
		{core.KindAuth, http.StatusUnauthorized},
		{core.KindNotFound, http.StatusNotFound},
		{core.KindSchema, http.StatusInternalServerError},
		{core.KindUnavailable, http.StatusServiceUnavailable},
		{core.KindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := StatusForKind(tt.kind); got != tt.want {
				t.Errorf("StatusForKind(%s) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestErrorFor(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFor(core.FieldError("name", "Name is <required>")).Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != `<div class="error">Name is &lt;required&gt;</div>` {
		t.Errorf("body = %q", got)
	}
	if !strings.Contains(w.Header().Get("HX-Trigger"), `"type":"error"`) {
		t.Errorf("missing error toast: %s", w.Header().Get("HX-Trigger"))
	}

	w = httptest.NewRecorder()
	ErrorFor(errors.New("boom")).Write(w)
	if w.Code != http.StatusInternalServerError || strings.Contains(w.Body.String(), "boom") {
		t.Errorf("untyped errors must be generic 500s: %d %q", w.Code, w.Body.String())
	}
}
