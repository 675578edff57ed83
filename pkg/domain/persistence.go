package domain

import "context"

// Transaction exposes the inventory operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	// CreateItem stores a new item. A zero ID is replaced by a freshly minted one.
	CreateItem(StockItem) (StockItem, error)
	UpdateItem(id int64, mutator func(*StockItem) error) (StockItem, error)
	DeleteItem(id int64) error
	AddCategory(name string) error
	DeleteCategory(name string) error
	AppendHistory(HistoryEntry) error
	FindItem(id int64) (StockItem, bool)
	HasCategory(name string) bool
}

// TransactionView is a read-only projection of state used by rules and queries.
type TransactionView interface {
	ListItems() []StockItem
	ListCategories() []string
	ListHistory() []HistoryEntry
	FindItem(id int64) (StockItem, bool)
	HasCategory(name string) bool
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ListItems() []StockItem
	ListCategories() []string
	ListHistory() []HistoryEntry
}
