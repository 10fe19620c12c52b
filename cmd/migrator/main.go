package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/EmeraldIsleCasino/wagercore/internal/config"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/dbutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/logging"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/migrations"
	"github.com/EmeraldIsleCasino/wagercore/pkg/envconf"
	"github.com/joho/godotenv"
)

type migratorConfig struct {
	LogLevel slog.Level `env:"APP_LOG_LEVEL" default:"INFO"`
	AppEnv   string     `env:"APP_ENV" default:""`

	Store    config.StoreConfig
	Postgres config.PostgresConfig
	SQLite   config.SQLiteConfig
}

func main() {
	err := migrateAll(context.Background())
	if err != nil {
		slog.Error("migration run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("migration run finished successfully")
}

func migrateAll(ctx context.Context) error {
	_ = godotenv.Load()

	cfg := new(migratorConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	dialect := dbutil.Dialect(cfg.Store.Driver)

	var db *sql.DB

	switch dialect {
	case dbutil.Postgres:
		db, err = dbutil.OpenPostgres(ctx, cfg.Postgres)
	case dbutil.SQLite:
		db, err = dbutil.OpenSQLite(ctx, cfg.SQLite.Path)
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", cfg.Store.Driver)
	}

	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	//nolint:errcheck
	defer db.Close()

	err = migrations.Apply(db, dialect)
	if err != nil {
		return fmt.Errorf("base migrations failed: %w", err)
	}

	slog.Info("base migrations applied", "store", dialect)

	if cfg.AppEnv == "DEV" {
		err = migrations.Seed(db, dialect)
		if err != nil {
			return fmt.Errorf("dev seed migrations failed: %w", err)
		}

		slog.Info("dev seed migrations applied")
	}

	return nil
}
