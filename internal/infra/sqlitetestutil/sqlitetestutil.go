// Package sqlitetestutil gives each test its own migrated SQLite database.
package sqlitetestutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/EmeraldIsleCasino/wagercore/internal/infra/dbutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/migrations"
)

// NewTestDB opens a fresh database file under t.TempDir() and applies the
// schema. The returned func closes the connection.
func NewTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wagercore.db")

	db, err := dbutil.OpenSQLite(t.Context(), path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = migrations.Apply(db, dbutil.SQLite)
	if err != nil {
		_ = db.Close()
		t.Fatalf("migrate sqlite: %v", err)
	}

	return db, func() { _ = db.Close() }
}
