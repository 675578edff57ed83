// Package snapshotsql keeps the record sets of a memory.Snapshot in a single
// two-column SQL table, one JSON document per record set. The sqlite and
// postgres stores differ only in their Dialect.
package snapshotsql

import (
	"context"
	"database/sql"
	"fmt"

	"stockroom/internal/infra/persistence/memory"
)

// Table is the name of the snapshot table.
const Table = "stockroom_record_sets"

// Dialect carries the statements that differ between database engines.
type Dialect struct {
	Name   string
	Create string
	Upsert string
}

// Postgres stores bodies as JSONB.
var Postgres = Dialect{
	Name: "postgres",
	Create: `CREATE TABLE IF NOT EXISTS ` + Table + ` (
		record_set TEXT PRIMARY KEY,
		body JSONB NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	Upsert: `INSERT INTO ` + Table + ` (record_set, body, saved_at) VALUES ($1, $2, now())
		ON CONFLICT (record_set) DO UPDATE SET body = EXCLUDED.body, saved_at = EXCLUDED.saved_at`,
}

// SQLite stores bodies as BLOBs.
var SQLite = Dialect{
	Name: "sqlite",
	Create: `CREATE TABLE IF NOT EXISTS ` + Table + ` (
		record_set TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		saved_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	Upsert: `INSERT INTO ` + Table + ` (record_set, body, saved_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (record_set) DO UPDATE SET body = excluded.body, saved_at = excluded.saved_at`,
}

// Migrate creates the snapshot table when it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	if _, err := db.ExecContext(ctx, d.Create); err != nil {
		return fmt.Errorf("%s: create %s: %w", d.Name, Table, err)
	}
	return nil
}

// Load reads every stored record set. Record sets that were never saved fall
// back to their defaults.
func Load(ctx context.Context, db *sql.DB, d Dialect) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT record_set, body FROM `+Table)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("%s: read %s: %w", d.Name, Table, err)
	}
	defer func() { _ = rows.Close() }()

	raw := make(map[string][]byte, len(memory.Buckets))
	for rows.Next() {
		var name string
		var body []byte
		if err := rows.Scan(&name, &body); err != nil {
			return memory.Snapshot{}, fmt.Errorf("%s: scan record set: %w", d.Name, err)
		}
		raw[name] = body
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("%s: read %s: %w", d.Name, Table, err)
	}
	return memory.SnapshotFromBuckets(raw)
}

// Save writes the named record sets of snapshot in one database transaction.
// Nothing is written when sets is empty.
func Save(ctx context.Context, db *sql.DB, d Dialect, snapshot memory.Snapshot, sets []string) (err error) {
	if len(sets) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", d.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, name := range sets {
		body, encErr := snapshot.EncodeBucket(name)
		if encErr != nil {
			return encErr
		}
		if _, err = tx.ExecContext(ctx, d.Upsert, name, body); err != nil {
			return fmt.Errorf("%s: save %s: %w", d.Name, name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", d.Name, err)
	}
	return nil
}
