// Package pgtestutil creates a throwaway Postgres database per test. Tests
// are skipped unless PG_TEST_DSN points at a server the test user may create
// databases on.
package pgtestutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/infra/dbutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const dsnEnv = "PG_TEST_DSN"

func NewTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	baseDSN := os.Getenv(dsnEnv)
	if baseDSN == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	adminDSN, err := ReplaceDBInDSN(baseDSN, "postgres")
	if err != nil {
		t.Fatalf("admin dsn: %v", err)
	}

	admin, err := sql.Open("pgx", adminDSN)
	if err != nil {
		t.Fatalf("open admin: %v", err)
	}

	dbName := sanitizeForPgIdent(uniqueDBName("testdb", t.Name()))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	const maxAttempts = 5
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err = admin.ExecContext(ctx,
			fmt.Sprintf(`CREATE DATABASE "%s" WITH TEMPLATE template0 ENCODING 'UTF8'`, dbName))
		if err == nil {
			break
		}

		if !dbutil.IsUniqueViolation(err) || attempt == maxAttempts {
			_ = admin.Close()
			t.Fatalf("create database: %v", err)
		}

		dbName = sanitizeForPgIdent(uniqueDBName("testdb", t.Name()))
	}

	testDSN, err := ReplaceDBInDSN(baseDSN, dbName)
	if err != nil {
		_ = admin.Close()
		t.Fatalf("test dsn: %v", err)
	}

	db, err := sql.Open("pgx", testDSN)
	if err != nil {
		_ = admin.Close()
		t.Fatalf("open test db: %v", err)
	}

	db.SetConnMaxIdleTime(100 * time.Millisecond)
	db.SetConnMaxLifetime(30 * time.Second)

	err = migrations.Apply(db, dbutil.Postgres)
	if err != nil {
		_ = db.Close()
		_ = admin.Close()
		t.Fatalf("migrate up: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
		time.Sleep(50 * time.Millisecond)

		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()

		_, derr := admin.ExecContext(dctx,
			fmt.Sprintf(`DROP DATABASE IF EXISTS "%s" WITH (FORCE)`, dbName))
		if derr == nil {
			_ = admin.Close()
			return
		}

		_, _ = admin.ExecContext(dctx, `
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = $1 AND pid <> pg_backend_pid()
		`, dbName)
		_, _ = admin.ExecContext(dctx,
			fmt.Sprintf(`DROP DATABASE IF EXISTS "%s"`, dbName))
		_ = admin.Close()
	}

	return db, cleanup
}

// ReplaceDBInDSN swaps the database name in a URL-form Postgres DSN.
func ReplaceDBInDSN(dsn, newDB string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported dsn scheme %q", u.Scheme)
	}

	u.Path = "/" + newDB

	return u.String(), nil
}

func uniqueDBName(prefix, testName string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(testName))

	var rnd [6]byte
	_, _ = rand.Read(rnd[:])

	return fmt.Sprintf("%s_%08x_%s", prefix, h.Sum32(), hex.EncodeToString(rnd[:]))
}

func sanitizeForPgIdent(s string) string {
	s = strings.ToLower(s)
	repl := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")
	s = repl.Replace(s)

	if len(s) <= 63 {
		return s
	}

	return s[:31] + "_" + s[len(s)-31:]
}
