package core

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvStorageDriver  = "STOCKROOM_STORAGE_DRIVER"
	EnvDataDir        = "STOCKROOM_DATA_DIR"
	EnvSQLitePath     = "STOCKROOM_SQLITE_PATH"
	EnvPostgresDSN    = "STOCKROOM_POSTGRES_DSN"
	EnvHistory        = "STOCKROOM_HISTORY"
	EnvCascadeHistory = "STOCKROOM_CASCADE_HISTORY"
	EnvCategoryPolicy = "STOCKROOM_CATEGORY_POLICY"
)

// Config gathers the settings needed to build a Service and its store.
type Config struct {
	Storage        StorageConfig
	History        bool
	CascadeHistory CascadeHistory
	CategoryPolicy CategoryPolicy
}

// ConfigFromEnv reads Config from the environment.
//
//	STOCKROOM_STORAGE_DRIVER: csv|memory|sqlite|postgres (default csv)
//	STOCKROOM_DATA_DIR: directory holding the CSV files (default .)
//	STOCKROOM_SQLITE_PATH: sqlite file (default <data dir>/stockroom.db)
//	STOCKROOM_POSTGRES_DSN: postgres DSN when driver=postgres
//	STOCKROOM_HISTORY: on|off (default on)
//	STOCKROOM_CASCADE_HISTORY: silent|per_item|aggregate (default silent)
//	STOCKROOM_CATEGORY_POLICY: warn|block (default warn)
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Storage: StorageConfig{
			Driver:      StorageDriver(strings.ToLower(strings.TrimSpace(os.Getenv(EnvStorageDriver)))),
			DataDir:     os.Getenv(EnvDataDir),
			SQLitePath:  os.Getenv(EnvSQLitePath),
			PostgresDSN: os.Getenv(EnvPostgresDSN),
		},
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageCSV
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "."
	}
	history, err := parseToggle(os.Getenv(EnvHistory), true)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvHistory, err)
	}
	cfg.History = history
	if cfg.CascadeHistory, err = ParseCascadeHistory(os.Getenv(EnvCascadeHistory)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvCascadeHistory, err)
	}
	if cfg.CategoryPolicy, err = ParseCategoryPolicy(os.Getenv(EnvCategoryPolicy)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvCategoryPolicy, err)
	}
	return cfg, nil
}

// ServiceOptions returns the options that apply cfg to a Service.
func (c Config) ServiceOptions() []ServiceOption {
	return []ServiceOption{
		WithHistory(c.History),
		WithCascadeHistory(c.CascadeHistory),
	}
}

func parseToggle(raw string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return def, nil
	case "1", "on", "true", "yes":
		return true, nil
	case "0", "off", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid toggle %q", raw)
	}
}
