// Package csvfile provides the tabular-file persistent store: the in-memory
// model mirrored to three CSV files (inventory, categories, history) after
// every committed transaction.
//
// Writes are serialized within the process. Separate processes sharing a data
// directory are not coordinated; the last writer wins.
package csvfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"stockroom/internal/infra/persistence/memory"
	"stockroom/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// File names inside the data directory.
const (
	InventoryFile  = "inventory.csv"
	CategoriesFile = "categories.csv"
	HistoryFile    = "history.csv"
)

// Store mirrors the in-memory state to CSV files.
type Store struct {
	*memory.Store
	dir      string
	mu       sync.Mutex
	warnings []string
}

// NewStore loads the CSV files under dir (creating dir when absent) into a new
// in-memory store. Missing files start empty (categories fall back to the
// defaults); malformed files are skipped and reported through Warnings.
func NewStore(dir string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine, opts...), dir: dir}
	s.ImportState(s.load())
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the absolute-or-relative path of one of the data files.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

// Warnings returns the recovery notices produced while loading.
func (s *Store) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.warnings)
}

func (s *Store) warn(kind string, err error) {
	s.warnings = append(s.warnings, fmt.Sprintf("error loading %s: %v", kind, err))
}

func (s *Store) load() memory.Snapshot {
	var snapshot memory.Snapshot

	items, err := LoadInventory(s.Path(InventoryFile))
	switch {
	case err == nil:
		snapshot.Items = items
	case !isMissing(err):
		s.warn("inventory", err)
	}

	categories, err := LoadCategories(s.Path(CategoriesFile))
	switch {
	case err == nil:
		snapshot.Categories = categories
	default:
		if !isMissing(err) {
			s.warn("categories", err)
		}
		snapshot.Categories = slices.Clone(domain.DefaultCategories)
	}

	history, err := LoadHistory(s.Path(HistoryFile), nil)
	switch {
	case err == nil:
		snapshot.History = history
	case !isMissing(err):
		s.warn("history", err)
	}
	return snapshot
}

// RunInTransaction applies fn and, on success, rewrites the files whose record
// sets the transaction touched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, changes, err := s.Store.RunInTransactionWithChanges(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(memory.TouchedEntities(changes)); err != nil {
		return res, err
	}
	return res, nil
}

// SaveAll rewrites all three files from the current state.
func (s *Store) SaveAll() error {
	return s.persist(map[domain.EntityType]bool{
		domain.EntityStockItem: true,
		domain.EntityCategory:  true,
		domain.EntityHistory:   true,
	})
}

func (s *Store) persist(touched map[domain.EntityType]bool) error {
	if len(touched) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	if touched[domain.EntityStockItem] {
		if err := writeFileAtomic(s.Path(InventoryFile), func(w io.Writer) error {
			return WriteInventory(w, snapshot.Items)
		}); err != nil {
			return fmt.Errorf("save inventory: %w", err)
		}
	}
	if touched[domain.EntityCategory] {
		if err := writeFileAtomic(s.Path(CategoriesFile), func(w io.Writer) error {
			return WriteCategories(w, snapshot.Categories)
		}); err != nil {
			return fmt.Errorf("save categories: %w", err)
		}
	}
	if touched[domain.EntityHistory] {
		if err := writeFileAtomic(s.Path(HistoryFile), func(w io.Writer) error {
			return WriteHistory(w, snapshot.History)
		}); err != nil {
			return fmt.Errorf("save history: %w", err)
		}
	}
	return nil
}
