// Package domain defines the persistent inventory records, change records and
// rule evaluation primitives used by stockroom.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the inventory domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityStockItem identifies a product/size stock-keeping unit.
	EntityStockItem EntityType = "stock_item"
	// EntityCategory identifies a category name.
	EntityCategory EntityType = "category"
	// EntityHistory identifies an audit trail entry.
	EntityHistory EntityType = "history_entry"
)

// DateLayout is the calendar format used for StockItem.LastUpdated.
const DateLayout = "2006-01-02"

// TimestampLayout is the second-resolution format used for history timestamps.
// Lexicographic order of formatted values matches chronological order.
const TimestampLayout = "2006-01-02 15:04:05"

// UncategorizedCategory is assigned when a variant's parent product cannot be resolved.
const UncategorizedCategory = "Uncategorized"

// DefaultCategories seeds a store that has no category data yet.
var DefaultCategories = []string{
	"Boiler Suits",
	"Safety Shoes",
	"Helmets",
	"Gloves",
	"Safety Jackets",
	"Face Shields",
}

// StockItem is one product/size combination and its quantity on hand.
type StockItem struct {
	ID          int64  `json:"id"`
	Category    string `json:"category"`
	Name        string `json:"name"`
	Size        string `json:"size"`
	Stock       int    `json:"stock"`
	LastUpdated string `json:"last_updated"`
}

// VariantKey returns the case-insensitive identity of the item's product/size pair.
func (s StockItem) VariantKey() string {
	return VariantKey(s.Name, s.Size)
}

// Fields returns the string form of every field in file column order.
func (s StockItem) Fields() []string {
	return []string{
		strconv.FormatInt(s.ID, 10),
		s.Category,
		s.Name,
		s.Size,
		strconv.Itoa(s.Stock),
		s.LastUpdated,
	}
}

// VariantKey normalises a product name and size into a uniqueness key.
func VariantKey(name, size string) string {
	return strings.ToLower(name) + "\x00" + strings.ToLower(size)
}

// HistoryAction names the stock-affecting action captured by a HistoryEntry.
type HistoryAction string

// History actions written to the audit trail.
const (
	HistoryCreated         HistoryAction = "Created"
	HistoryCreatedVariant  HistoryAction = "Created Variant"
	HistoryStockIn         HistoryAction = "Stock In"
	HistoryStockOut        HistoryAction = "Stock Out"
	HistoryDeletedVariant  HistoryAction = "Deleted Variant"
	HistoryDeletedProduct  HistoryAction = "Deleted Product"
	HistoryDeletedCategory HistoryAction = "Deleted Category"
)

// AllProductsSize marks product-level history entries that span every size.
const AllProductsSize = "ALL"

// HistoryEntry is an immutable audit record of one stock-affecting action.
type HistoryEntry struct {
	Timestamp   time.Time     `json:"timestamp"`
	ProductName string        `json:"product_name"`
	Size        string        `json:"size"`
	Action      HistoryAction `json:"action"`
	Change      int           `json:"change"`
	FinalStock  int           `json:"final_stock"`
}

// Fields returns the string form of every field in file column order.
func (h HistoryEntry) Fields() []string {
	return []string{
		h.Timestamp.Format(TimestampLayout),
		h.ProductName,
		h.Size,
		string(h.Action),
		strconv.Itoa(h.Change),
		strconv.Itoa(h.FinalStock),
	}
}

// Severity captures rule outcomes.
type Severity string

// Severity levels for rule violations.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn reports a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions captured by transactions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entity_id,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the messages of non-blocking violations.
func (r Result) Warnings() []string {
	var out []string
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v.Message)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
