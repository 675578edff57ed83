//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"stockroom/pkg/domain"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:alpine",
		tcpostgres.WithDatabase("stockroom"),
		tcpostgres.WithUsername("stockroom"),
		tcpostgres.WithPassword("stockroom"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	return dsn
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)

	store, err := NewStore(ctx, dsn, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		item, err := tx.CreateItem(domain.StockItem{Category: "Helmets", Name: "Yellow Helmet", Size: "S", Stock: 10, LastUpdated: "2024-01-01"})
		if err != nil {
			return err
		}
		return tx.AppendHistory(domain.HistoryEntry{ProductName: item.Name, Size: item.Size, Action: domain.HistoryCreated, Change: 10, FinalStock: 10})
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = store.Close()

	reloaded, err := NewStore(ctx, dsn, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if got := reloaded.ListItems(); len(got) != 1 || got[0].Stock != 10 {
		t.Fatalf("unexpected items after reload: %+v", got)
	}
	if got := reloaded.ListHistory(); len(got) != 1 {
		t.Fatalf("unexpected history after reload: %+v", got)
	}
	if len(reloaded.ListCategories()) != len(domain.DefaultCategories) {
		t.Fatalf("expected default categories, got %v", reloaded.ListCategories())
	}
}
