package domain

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn, Message: "soft"}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "hard"}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if !strings.Contains(err.Error(), "hard") {
		t.Fatalf("expected blocking message in error, got %q", err.Error())
	}
	if got := result.Warnings(); len(got) != 1 || got[0] != "soft" {
		t.Fatalf("unexpected warnings %v", got)
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected violation")
	}
	if names := engine.Rules(); len(names) != 1 || names[0] != "warn" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

func TestVariantKeyIgnoresCase(t *testing.T) {
	a := StockItem{Name: "Yellow Helmet", Size: "M"}
	b := StockItem{Name: "yellow helmet", Size: "m"}
	if a.VariantKey() != b.VariantKey() {
		t.Fatalf("expected equal keys")
	}
	if VariantKey("ab", "c") == VariantKey("a", "bc") {
		t.Fatalf("expected separator to keep keys distinct")
	}
}

func TestFieldsUseFileColumnOrder(t *testing.T) {
	item := StockItem{ID: 7, Category: "Gloves", Name: "Nitrile", Size: "L", Stock: 3, LastUpdated: "2024-05-01"}
	want := []string{"7", "Gloves", "Nitrile", "L", "3", "2024-05-01"}
	got := item.Fields()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("field %d: want %q got %q", i, want[i], got[i])
		}
	}

	entry := HistoryEntry{
		Timestamp:   time.Date(2024, 5, 1, 9, 3, 4, 0, time.UTC),
		ProductName: "Nitrile",
		Size:        "L",
		Action:      HistoryStockOut,
		Change:      -1,
		FinalStock:  2,
	}
	if got := strings.Join(entry.Fields(), ","); got != "2024-05-01 09:03:04,Nitrile,L,Stock Out,-1,2" {
		t.Fatalf("unexpected history fields %q", got)
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type emptyView struct{}

func (emptyView) ListItems() []StockItem           { return nil }
func (emptyView) ListCategories() []string         { return nil }
func (emptyView) FindItem(int64) (StockItem, bool) { return StockItem{}, false }
func (emptyView) HasCategory(string) bool          { return false }
