package snapshotsql_test

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"stockroom/internal/infra/persistence/memory"
	"stockroom/internal/infra/persistence/snapshotsql"
	"stockroom/internal/infra/persistence/snapshotsql/fakedb"
	"stockroom/pkg/domain"
)

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	conn := fakedb.New()
	db := conn.DB()
	t.Cleanup(func() { _ = db.Close() })

	if err := snapshotsql.Migrate(ctx, db, snapshotsql.Postgres); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if stmts := conn.Statements(); len(stmts) != 1 || !strings.Contains(stmts[0], snapshotsql.Table) {
		t.Fatalf("expected one DDL statement naming %s, got %v", snapshotsql.Table, stmts)
	}

	snapshot := memory.Snapshot{
		Items:      []domain.StockItem{{ID: 3, Category: "Gloves", Name: "Rigger", Size: "L", Stock: 4, LastUpdated: "2024-07-15"}},
		Categories: []string{"Gloves"},
	}
	if err := snapshotsql.Save(ctx, db, snapshotsql.Postgres, snapshot, memory.Buckets); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := conn.Names(); !slices.Equal(got, []string{"categories", "history", "items"}) {
		t.Fatalf("unexpected record sets %v", got)
	}
	if body, _ := conn.Get("history"); string(body) != "[]" {
		t.Fatalf("empty history must be stored as [], got %s", body)
	}

	loaded, err := snapshotsql.Load(ctx, db, snapshotsql.Postgres)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Items) != 1 || loaded.Items[0] != snapshot.Items[0] {
		t.Fatalf("unexpected items %+v", loaded.Items)
	}
	if !slices.Equal(loaded.Categories, []string{"Gloves"}) {
		t.Fatalf("unexpected categories %v", loaded.Categories)
	}
}

func TestLoadDefaultsMissingCategories(t *testing.T) {
	conn := fakedb.New()
	items, _ := json.Marshal([]domain.StockItem{{ID: 1, Name: "Visor", Size: "ONE"}})
	conn.Put("items", items)

	loaded, err := snapshotsql.Load(context.Background(), conn.DB(), snapshotsql.SQLite)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Equal(loaded.Categories, domain.DefaultCategories) {
		t.Fatalf("expected default categories, got %v", loaded.Categories)
	}
}

func TestSaveNothingSkipsTransaction(t *testing.T) {
	conn := fakedb.New()
	if err := snapshotsql.Save(context.Background(), conn.DB(), snapshotsql.SQLite, memory.Snapshot{}, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if conn.Commits() != 0 {
		t.Fatalf("expected no commit, got %d", conn.Commits())
	}
}

func TestErrorsNameTheDialect(t *testing.T) {
	ctx := context.Background()
	conn := fakedb.New()
	db := conn.DB()

	conn.FailOn(fakedb.OpCreate)
	if err := snapshotsql.Migrate(ctx, db, snapshotsql.SQLite); err == nil || !strings.HasPrefix(err.Error(), "sqlite: create") {
		t.Fatalf("expected create failure, got %v", err)
	}
	conn.Recover()

	conn.FailOn(fakedb.SaveOf("history"))
	err := snapshotsql.Save(ctx, db, snapshotsql.Postgres, memory.Snapshot{}, []string{"items", "history"})
	if err == nil || !strings.Contains(err.Error(), "postgres: save history") {
		t.Fatalf("expected save failure, got %v", err)
	}
	conn.Recover()

	conn.FailOn(fakedb.OpQuery)
	if _, err := snapshotsql.Load(ctx, db, snapshotsql.Postgres); err == nil {
		t.Fatalf("expected read failure")
	}
	conn.Recover()

	conn.Put("history", []byte("{bad"))
	if _, err := snapshotsql.Load(ctx, db, snapshotsql.Postgres); err == nil || !strings.Contains(err.Error(), "decode history") {
		t.Fatalf("expected decode failure, got %v", err)
	}
}
