package entries

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/infra/pgtestutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/repos/entries"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func entry(userID uint64, amount int64, kind entries.Kind, ref string) entries.Entry {
	return entries.Entry{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Kind:      kind,
		Reference: ref,
		CreatedAt: time.Now().UTC(),
	}
}

func TestEntries_Insert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seed    func(t *testing.T, db *sql.DB, repo *entriesRepo)
		entry   entries.Entry
		wantErr error
	}{
		{
			name: "ok_insert",
			seed: func(t *testing.T, db *sql.DB, _ *entriesRepo) {
				_, err := db.Exec(`INSERT INTO accounts (user_id, balance) VALUES ($1, $2)`, 1, 100)
				if err != nil {
					t.Fatalf("seed account: %v", err)
				}
			},
			entry: entry(1, -100, entries.KindStake, "session:a"),
		},
		{
			name: "duplicate_reference_same_kind",
			seed: func(t *testing.T, db *sql.DB, repo *entriesRepo) {
				_, err := db.Exec(`INSERT INTO accounts (user_id, balance) VALUES ($1, $2)`, 2, 100)
				if err != nil {
					t.Fatalf("seed account: %v", err)
				}

				_, err = db.Exec(`
					INSERT INTO ledger_entries (id, user_id, amount, kind, reference, created_at)
					VALUES ($1, $2, $3, $4, $5, now())
				`, uuid.New(), 2, 200, "win", "match:dup:2")
				if err != nil {
					t.Fatalf("seed entry: %v", err)
				}
			},
			entry:   entry(2, 200, entries.KindWin, "match:dup:2"),
			wantErr: entries.ErrDuplicateReference,
		},
		{
			name:    "account_missing_fk_violation",
			seed:    func(*testing.T, *sql.DB, *entriesRepo) {},
			entry:   entry(999, 50, entries.KindDeposit, ""),
			wantErr: &pgconn.PgError{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			repo := New(db)
			tt.seed(t, db, repo)

			tx, err := db.BeginTx(t.Context(), nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			//nolint:errcheck
			defer tx.Rollback()

			err = repo.Insert(tx, tt.entry)

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				return
			}

			var pgErr *pgconn.PgError
			if errors.As(tt.wantErr, &pgErr) {
				if !errors.As(err, &pgErr) {
					t.Fatalf("expected pg error, got %v", err)
				}

				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("unexpected error: got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEntries_SameReferenceDifferentKind(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	_, err := db.Exec(`INSERT INTO accounts (user_id, balance) VALUES ($1, $2)`, 1, 0)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}

	repo := New(db)

	tx, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	//nolint:errcheck
	defer tx.Rollback()

	for _, kind := range []entries.Kind{entries.KindStake, entries.KindWin} {
		err = repo.Insert(tx, entry(1, 10, kind, "session:x"))
		if err != nil {
			t.Fatalf("insert %s: %v", kind, err)
		}
	}

	sums, err := repo.SumByKind(tx)
	if err != nil {
		t.Fatalf("sum by kind: %v", err)
	}

	if sums[entries.KindStake] != 10 || sums[entries.KindWin] != 10 {
		t.Fatalf("sums: want 10/10, got %v", sums)
	}
}
