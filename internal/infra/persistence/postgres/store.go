// Package postgres provides a Postgres-backed persistent store: the in-memory
// model whose touched record sets are written as JSONB rows after every
// committed transaction.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"stockroom/internal/infra/persistence/memory"
	"stockroom/internal/infra/persistence/snapshotsql"
	"stockroom/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultDSN is used when NewStore receives an empty DSN.
const DefaultDSN = "postgres://localhost/stockroom?sslmode=disable"

// Store is a memory.Store mirrored to Postgres.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore connects to dsn through pgx and opens the store on that handle.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	store, err := Open(ctx, db, engine, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Open builds a store on an existing handle: it checks the connection,
// creates the snapshot table and loads the saved record sets. The store owns
// db afterwards.
func Open(ctx context.Context, db *sql.DB, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if err := snapshotsql.Migrate(ctx, db, snapshotsql.Postgres); err != nil {
		return nil, err
	}
	snapshot, err := snapshotsql.Load(ctx, db, snapshotsql.Postgres)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine, opts...)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction commits fn in memory and then saves the record sets it touched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
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
	return snapshotsql.Save(ctx, s.db, snapshotsql.Postgres, s.ExportState(), sets)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
