package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stockroom/internal/infra/persistence/csvfile"
	"stockroom/internal/infra/persistence/memory"
	"stockroom/internal/infra/persistence/sqlite"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	for _, key := range []string{EnvStorageDriver, EnvDataDir, EnvSQLitePath, EnvPostgresDSN, EnvHistory, EnvCascadeHistory, EnvCategoryPolicy} {
		t.Setenv(key, "")
	}
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Storage.Driver != StorageCSV || cfg.Storage.DataDir != "." {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	if !cfg.History || cfg.CascadeHistory != CascadeHistorySilent || cfg.CategoryPolicy != CategoryPolicyWarn {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvStorageDriver, " SQLite ")
	t.Setenv(EnvDataDir, "/var/lib/stockroom")
	t.Setenv(EnvHistory, "off")
	t.Setenv(EnvCascadeHistory, "aggregate")
	t.Setenv(EnvCategoryPolicy, "block")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Storage.Driver != StorageSQLite || cfg.Storage.DataDir != "/var/lib/stockroom" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.History || cfg.CascadeHistory != CascadeHistoryAggregate || cfg.CategoryPolicy != CategoryPolicyBlock {
		t.Fatalf("unexpected config %+v", cfg)
	}

	svc := NewInMemoryService(NewRulesEngine(), cfg.ServiceOptions()...)
	if svc.HistoryEnabled() {
		t.Fatalf("service options should disable history")
	}
}

func TestConfigFromEnvRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		EnvHistory:        "sometimes",
		EnvCascadeHistory: "loud",
		EnvCategoryPolicy: "strict",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := ConfigFromEnv()
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error naming %s, got %v", key, err)
			}
		})
	}
}

func TestOpenPersistentStoreDrivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	engine := NewDefaultRulesEngine(CategoryPolicyWarn)

	store, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageCSV, DataDir: dir}, engine)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if _, ok := store.(*csvfile.Store); !ok {
		t.Fatalf("expected csv store, got %T", store)
	}
	if warnings := LoadWarnings(store); len(warnings) != 0 {
		t.Fatalf("fresh csv store should load cleanly, got %v", warnings)
	}

	store, err = OpenPersistentStore(ctx, StorageConfig{Driver: StorageMemory}, engine)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
	if LoadWarnings(store) != nil {
		t.Fatalf("memory store keeps no warnings")
	}

	store, err = OpenPersistentStore(ctx, StorageConfig{Driver: StorageSQLite, DataDir: dir}, engine)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	sq, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	t.Cleanup(func() { _ = sq.Close() })
	if sq.Path() != filepath.Join(dir, "stockroom.db") {
		t.Fatalf("unexpected sqlite path %s", sq.Path())
	}

	if _, err := OpenPersistentStore(ctx, StorageConfig{Driver: "redis"}, engine); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestCSVBackedServiceSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := StorageConfig{Driver: StorageCSV, DataDir: dir}

	store, err := OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine(CategoryPolicyWarn))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc := NewService(store)
	if _, _, err := svc.CreateProduct(ctx, ProductInput{Category: "Helmets", Name: "Yellow Helmet", Sizes: "S, M", InitialStock: 10}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, csvfile.InventoryFile)); err != nil {
		t.Fatalf("inventory file not written: %v", err)
	}

	reopened, err := OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine(CategoryPolicyWarn))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again := NewService(reopened)
	if got := len(again.Inventory()); got != 2 {
		t.Fatalf("expected 2 items after restart, got %d", got)
	}
	if got := len(again.History("")); got != 2 {
		t.Fatalf("expected 2 history entries after restart, got %d", got)
	}
}
