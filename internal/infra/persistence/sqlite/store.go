// Package sqlite provides a SQLite-backed persistent store. The in-memory model
// is loaded from a single database file and the record sets touched by each
// committed transaction are written back to it.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"stockroom/internal/infra/persistence/memory"
	"stockroom/internal/infra/persistence/snapshotsql"
	"stockroom/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "stockroom.db"

// Store is a memory.Store mirrored to a SQLite file.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating when needed) the database at path, or stockroom.db
// in the working directory when path is empty.
func NewStore(path string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("sqlite: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One connection keeps writers from racing on the file lock.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := snapshotsql.Migrate(ctx, db, snapshotsql.SQLite); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapshot, err := snapshotsql.Load(ctx, db, snapshotsql.SQLite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine, opts...)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db, path: path}, nil
}

// RunInTransaction commits fn in memory and then saves the record sets it touched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, changes, err := s.Store.RunInTransactionWithChanges(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.save(ctx, memory.TouchedBuckets(memory.TouchedEntities(changes))); err != nil {
		return res, err
	}
	return res, nil
}

// SaveAll writes every record set from the current state.
func (s *Store) SaveAll(ctx context.Context) error {
	return s.save(ctx, memory.Buckets)
}

func (s *Store) save(ctx context.Context, sets []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotsql.Save(ctx, s.db, snapshotsql.SQLite, s.ExportState(), sets)
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
