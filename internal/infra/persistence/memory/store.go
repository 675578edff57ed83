// Package memory provides the in-memory implementation of the inventory
// persistence store. Durable backends embed it and snapshot its state after
// every committed transaction.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"stockroom/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// StockItem aliases domain.StockItem.
	StockItem = domain.StockItem
	// HistoryEntry aliases domain.HistoryEntry.
	HistoryEntry = domain.HistoryEntry
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Snapshot captures a point-in-time copy of the three record sets.
type Snapshot struct {
	Items      []StockItem    `json:"items"`
	Categories []string       `json:"categories"`
	History    []HistoryEntry `json:"history"`
}

type memoryState struct {
	items      []StockItem
	categories []string
	history    []HistoryEntry
	lastID     int64
}

func (s memoryState) clone() memoryState {
	return memoryState{
		items:      slices.Clone(s.items),
		categories: slices.Clone(s.categories),
		history:    slices.Clone(s.history),
		lastID:     s.lastID,
	}
}

func stateFromSnapshot(snapshot Snapshot) memoryState {
	state := memoryState{
		items:      slices.Clone(snapshot.Items),
		categories: slices.Clone(snapshot.Categories),
		history:    slices.Clone(snapshot.History),
	}
	for _, item := range state.items {
		if item.ID > state.lastID {
			state.lastID = item.ID
		}
	}
	return state
}

// Option customises a Store.
type Option func(*Store)

// WithNowFunc overrides the clock used to mint identifiers.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// Store is an in-memory inventory store guarded by a single mutex.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store seeded with the default categories.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  memoryState{categories: slices.Clone(domain.DefaultCategories)},
		engine: engine,
		nowFn:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState copies the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Items:      slices.Clone(s.state.items),
		Categories: slices.Clone(s.state.categories),
		History:    slices.Clone(s.state.history),
	}
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the clock used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// ListItems returns every stock item in insertion order.
func (s *Store) ListItems() []StockItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.items)
}

// ListCategories returns the category names in insertion order.
func (s *Store) ListCategories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.categories)
}

// ListHistory returns the audit trail in append order.
func (s *Store) ListHistory() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.history)
}

// RunInTransaction applies fn against a copy of the state and commits it when
// fn succeeds and no blocking rule fires.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	res, _, err := s.RunInTransactionWithChanges(ctx, fn)
	return res, err
}

// RunInTransactionWithChanges behaves like RunInTransaction and also returns the
// committed changes so durable wrappers can persist only the touched record sets.
func (s *Store) RunInTransactionWithChanges(ctx context.Context, fn func(tx Transaction) error) (Result, []Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return Result{}, nil, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, newTransactionView(&tx.state), tx.changes)
		if err != nil {
			return Result{}, nil, err
		}
		result = res
		if res.HasBlocking() {
			return res, nil, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, tx.changes, nil
}

// View executes fn against a read-only copy of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) indexOf(id int64) int {
	return slices.IndexFunc(tx.state.items, func(item StockItem) bool { return item.ID == id })
}

// mintID returns an identifier strictly greater than any issued before while
// staying close to the wall clock in milliseconds.
func (tx *transaction) mintID() int64 {
	id := tx.state.lastID + 1
	if ms := tx.now.UnixMilli(); ms > id {
		id = ms
	}
	return id
}

func (tx *transaction) CreateItem(item StockItem) (StockItem, error) {
	if item.ID == 0 {
		item.ID = tx.mintID()
	} else if tx.indexOf(item.ID) >= 0 {
		return StockItem{}, fmt.Errorf("stock item %d already exists", item.ID)
	}
	if item.ID > tx.state.lastID {
		tx.state.lastID = item.ID
	}
	tx.state.items = append(tx.state.items, item)
	tx.recordChange(Change{Entity: domain.EntityStockItem, Action: domain.ActionCreate, After: item})
	return item, nil
}

func (tx *transaction) UpdateItem(id int64, mutator func(*StockItem) error) (StockItem, error) {
	idx := tx.indexOf(id)
	if idx < 0 {
		return StockItem{}, fmt.Errorf("stock item %d not found", id)
	}
	before := tx.state.items[idx]
	updated := before
	if err := mutator(&updated); err != nil {
		return StockItem{}, err
	}
	updated.ID = id
	tx.state.items[idx] = updated
	tx.recordChange(Change{Entity: domain.EntityStockItem, Action: domain.ActionUpdate, Before: before, After: updated})
	return updated, nil
}

func (tx *transaction) DeleteItem(id int64) error {
	idx := tx.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("stock item %d not found", id)
	}
	before := tx.state.items[idx]
	tx.state.items = slices.Delete(tx.state.items, idx, idx+1)
	tx.recordChange(Change{Entity: domain.EntityStockItem, Action: domain.ActionDelete, Before: before})
	return nil
}

func (tx *transaction) AddCategory(name string) error {
	if slices.Contains(tx.state.categories, name) {
		return fmt.Errorf("category %q already exists", name)
	}
	tx.state.categories = append(tx.state.categories, name)
	tx.recordChange(Change{Entity: domain.EntityCategory, Action: domain.ActionCreate, After: name})
	return nil
}

func (tx *transaction) DeleteCategory(name string) error {
	idx := slices.Index(tx.state.categories, name)
	if idx < 0 {
		return fmt.Errorf("category %q not found", name)
	}
	tx.state.categories = slices.Delete(tx.state.categories, idx, idx+1)
	tx.recordChange(Change{Entity: domain.EntityCategory, Action: domain.ActionDelete, Before: name})
	return nil
}

func (tx *transaction) AppendHistory(entry HistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = tx.now
	}
	tx.state.history = append(tx.state.history, entry)
	tx.recordChange(Change{Entity: domain.EntityHistory, Action: domain.ActionCreate, After: entry})
	return nil
}

func (tx *transaction) FindItem(id int64) (StockItem, bool) {
	return newTransactionView(&tx.state).FindItem(id)
}

func (tx *transaction) HasCategory(name string) bool {
	return slices.Contains(tx.state.categories, name)
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) transactionView {
	return transactionView{state: state}
}

func (v transactionView) ListItems() []StockItem {
	return slices.Clone(v.state.items)
}

func (v transactionView) ListCategories() []string {
	return slices.Clone(v.state.categories)
}

func (v transactionView) ListHistory() []HistoryEntry {
	return slices.Clone(v.state.history)
}

func (v transactionView) FindItem(id int64) (StockItem, bool) {
	for _, item := range v.state.items {
		if item.ID == id {
			return item, true
		}
	}
	return StockItem{}, false
}

func (v transactionView) HasCategory(name string) bool {
	return slices.Contains(v.state.categories, name)
}

// TouchedEntities reports which record sets a change list modified.
func TouchedEntities(changes []Change) map[domain.EntityType]bool {
	touched := make(map[domain.EntityType]bool, 3)
	for _, c := range changes {
		touched[c.Entity] = true
	}
	return touched
}
