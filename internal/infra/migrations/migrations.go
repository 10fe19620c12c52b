// Package migrations embeds the schema for every supported store and applies
// it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"

	"github.com/EmeraldIsleCasino/wagercore/internal/infra/dbutil"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite/*.sql
var schemaFS embed.FS

//go:embed seed/postgres/*.sql seed/sqlite/*.sql
var seedFS embed.FS

const seedTable = "seed_migrations"

// Apply brings the schema up to date.
func Apply(db *sql.DB, dialect dbutil.Dialect) error {
	driver, err := newDriver(db, dialect, "")
	if err != nil {
		return err
	}

	err = run(driver, dialect, schemaFS, string(dialect))
	if err != nil {
		return fmt.Errorf("schema migrations: %w", err)
	}

	return nil
}

// Seed loads demo accounts. Seed versions are tracked in their own table so
// they never collide with schema versions.
func Seed(db *sql.DB, dialect dbutil.Dialect) error {
	driver, err := newDriver(db, dialect, seedTable)
	if err != nil {
		return err
	}

	err = run(driver, dialect, seedFS, path.Join("seed", string(dialect)))
	if err != nil {
		return fmt.Errorf("seed migrations: %w", err)
	}

	return nil
}

func newDriver(db *sql.DB, dialect dbutil.Dialect, table string) (database.Driver, error) {
	switch dialect {
	case dbutil.Postgres:
		driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
		if err != nil {
			return nil, fmt.Errorf("init postgres driver: %w", err)
		}

		return driver, nil
	case dbutil.SQLite:
		driver, err := sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: table})
		if err != nil {
			return nil, fmt.Errorf("init sqlite driver: %w", err)
		}

		return driver, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

func run(driver database.Driver, dialect dbutil.Dialect, fsys embed.FS, dir string) error {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("m.Up: %w", err)
	}

	return nil
}
