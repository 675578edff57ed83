package dashboard

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"stockroom/internal/adapters/exports"
	"stockroom/internal/core"
)

func TestAPIProductLifecycle(t *testing.T) {
	f := newFixture(t)
	payload := []byte(`{"category":"Helmets","name":"Yellow Helmet","sizes":"S, M, M","initial_stock":10}`)

	rec := f.do(http.MethodPost, "/api/v1/products", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created createResponse
	decode(t, rec, &created)
	if len(created.Created) != 2 || len(created.Skipped) != 1 || created.Skipped[0] != "M" {
		t.Fatalf("unexpected create response %+v", created)
	}

	rec = f.do(http.MethodPost, "/api/v1/products", payload)
	var repeated createResponse
	decode(t, rec, &repeated)
	if rec.Code != http.StatusOK || len(repeated.Created) != 0 || len(repeated.Warnings) != 1 || repeated.Warnings[0] != NoNewItemsWarning {
		t.Fatalf("expected no-op warning, got %d %+v", rec.Code, repeated)
	}

	rec = f.do(http.MethodPost, "/api/v1/variants", []byte(`{"product":"Yellow Helmet","sizes":"L","initial_stock":5}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("variant: expected 201, got %d", rec.Code)
	}

	var inventory struct {
		Categories []core.CategoryGroup `json:"categories"`
	}
	decode(t, f.do(http.MethodGet, "/api/v1/inventory", nil), &inventory)
	if len(inventory.Categories) != 1 || inventory.Categories[0].Products[0].TotalStock != 25 {
		t.Fatalf("unexpected grouped inventory %+v", inventory)
	}

	id := strconv.FormatInt(created.Created[0].ID, 10)
	var adjusted core.AdjustOutcome
	decode(t, f.do(http.MethodPost, "/api/v1/items/"+id+"/increment", nil), &adjusted)
	if !adjusted.Changed || adjusted.Item.Stock != 11 {
		t.Fatalf("unexpected increment %+v", adjusted)
	}
	decode(t, f.do(http.MethodPost, "/api/v1/items/"+id+"/decrement", nil), &adjusted)
	if adjusted.Item.Stock != 10 {
		t.Fatalf("unexpected decrement %+v", adjusted)
	}

	rec = f.do(http.MethodDelete, "/api/v1/items/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete variant: %d", rec.Code)
	}
	var removed struct {
		Removed int `json:"removed"`
	}
	decode(t, f.do(http.MethodDelete, "/api/v1/products/Yellow%20Helmet", nil), &removed)
	if removed.Removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed.Removed)
	}

	var products struct {
		Products []string `json:"products"`
	}
	decode(t, f.do(http.MethodGet, "/api/v1/products", nil), &products)
	if products.Products == nil || len(products.Products) != 0 {
		t.Fatalf("expected empty product list, got %#v", products.Products)
	}
}

func TestAPIReadEndpoints(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	var items struct {
		Items []core.StockItem `json:"items"`
	}
	decode(t, f.do(http.MethodGet, "/api/v1/items?q=GLOVES", nil), &items)
	if len(items.Items) != 1 || items.Items[0].Name != "Rigger" {
		t.Fatalf("unexpected search result %+v", items.Items)
	}

	var summary struct {
		Summary core.Summary `json:"summary"`
	}
	decode(t, f.do(http.MethodGet, "/api/v1/summary", nil), &summary)
	if summary.Summary != (core.Summary{Variants: 3, Products: 2, TotalUnits: 22, LowStock: 1}) {
		t.Fatalf("unexpected summary %+v", summary.Summary)
	}

	var history struct {
		Enabled bool                `json:"enabled"`
		History []core.HistoryEntry `json:"history"`
	}
	decode(t, f.do(http.MethodGet, "/api/v1/history?q=rigger", nil), &history)
	if !history.Enabled || len(history.History) != 1 || history.History[0].Change != 2 {
		t.Fatalf("unexpected history %+v", history)
	}

	rec := f.do(http.MethodGet, "/api/v1/history.csv", nil)
	if lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n"); len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %q", lines)
	}
}

func TestAPICategories(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/categories", []byte(`{"name":" Boots "}`))
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"Boots"`) {
		t.Fatalf("add: %d %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Categories []string `json:"categories"`
	}
	decode(t, f.do(http.MethodGet, "/api/v1/categories", nil), &list)
	if list.Categories[len(list.Categories)-1] != "Boots" {
		t.Fatalf("expected Boots appended, got %v", list.Categories)
	}
	rec = f.do(http.MethodDelete, "/api/v1/categories/Boots", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"removed":0`) {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAPIErrorMapping(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	cases := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"malformed json", http.MethodPost, "/api/v1/products", `{`, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/v1/products", `{"category":"Helmets","sizes":"S"}`, http.StatusBadRequest},
		{"negative stock", http.MethodPost, "/api/v1/variants", `{"product":"Rigger","sizes":"XL","initial_stock":-1}`, http.StatusBadRequest},
		{"unknown category", http.MethodPost, "/api/v1/products", `{"category":"Boots","name":"X","sizes":"S"}`, http.StatusNotFound},
		{"non numeric id", http.MethodPost, "/api/v1/items/abc/increment", ``, http.StatusBadRequest},
		{"unknown id", http.MethodDelete, "/api/v1/items/42", ``, http.StatusNotFound},
		{"unknown product", http.MethodDelete, "/api/v1/products/Nope", ``, http.StatusNotFound},
		{"duplicate category", http.MethodPost, "/api/v1/categories", `{"name":"Helmets"}`, http.StatusConflict},
		{"unknown category delete", http.MethodDelete, "/api/v1/categories/Nope", ``, http.StatusNotFound},
		{"unknown export", http.MethodGet, "/api/v1/history/exports/nope", ``, http.StatusNotFound},
		{"unknown export download", http.MethodGet, "/api/v1/history/exports/nope/download", ``, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body []byte
			if tc.body != "" {
				body = []byte(tc.body)
			}
			rec := f.do(tc.method, tc.target, body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			var payload map[string]string
			decode(t, rec, &payload)
			if payload["error"] == "" {
				t.Fatalf("expected error message, got %s", rec.Body.String())
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{core.ValidationError{Field: "name", Message: "is required"}, http.StatusBadRequest},
		{core.ErrNotFound{Entity: core.EntityCategory, ID: "x"}, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", core.ErrDuplicateCategory), http.StatusConflict},
		{core.RuleViolationError{}, http.StatusConflict},
		{fmt.Errorf("%w: abc", exports.ErrNotReady), http.StatusConflict},
		{exports.ErrQueueFull, http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}

func TestAPIHistoryExport(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(http.MethodPost, "/api/v1/history/exports", []byte(`{"query":"rigger"}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("enqueue: expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var queued struct {
		Export exports.Record `json:"export"`
	}
	decode(t, rec, &queued)
	if queued.Export.RequestedBy != "api" {
		t.Fatalf("expected api requester, got %q", queued.Export.RequestedBy)
	}

	deadline := time.Now().Add(2 * time.Second)
	var current struct {
		Export exports.Record `json:"export"`
	}
	for {
		decode(t, f.do(http.MethodGet, "/api/v1/history/exports/"+queued.Export.ID, nil), &current)
		if current.Export.Status == exports.StatusSucceeded {
			break
		}
		if current.Export.Status == exports.StatusFailed || time.Now().After(deadline) {
			t.Fatalf("export did not succeed: %+v", current.Export)
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec = f.do(http.MethodGet, "/api/v1/history/exports/"+queued.Export.ID+"/download", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download: %d", rec.Code)
	}
	data, _ := io.ReadAll(rec.Body)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[1], ",Rigger,L,Created,2,2") {
		t.Fatalf("unexpected archive %q", lines)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), queued.Export.ID) {
		t.Fatalf("unexpected disposition %s", rec.Header().Get("Content-Disposition"))
	}

	var list struct {
		Exports []exports.Record `json:"exports"`
	}
	decode(t, f.do(http.MethodGet, "/api/v1/history/exports", nil), &list)
	if len(list.Exports) != 1 || list.Exports[0].ID != queued.Export.ID {
		t.Fatalf("unexpected export list %+v", list.Exports)
	}
}
