package accounts

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/infra/pgtestutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/repos/accounts"
)

func upsert(t *testing.T, db *sql.DB, id uint64, bal int64) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO accounts (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = EXCLUDED.balance
	`, id, bal)
	if err != nil {
		t.Fatalf("seed upsert account(%d): %v", id, err)
	}
}

func TestAccounts_DecreaseBalance_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		seed          func(db *sql.DB, t *testing.T)
		userID        uint64
		amount        int64
		wantBalance   int64
		wantErr       bool
		checkFinalBal bool
	}{
		{
			name:          "sufficient_funds_decrease_from_positive",
			seed:          func(db *sql.DB, t *testing.T) { upsert(t, db, 201, 1_000) },
			userID:        201,
			amount:        250,
			wantBalance:   750,
			checkFinalBal: true,
		},
		{
			name:          "sufficient_funds_exact_to_zero",
			seed:          func(db *sql.DB, t *testing.T) { upsert(t, db, 202, 300) },
			userID:        202,
			amount:        300,
			wantBalance:   0,
			checkFinalBal: true,
		},
		{
			name:          "insufficient_funds_balance_unchanged",
			seed:          func(db *sql.DB, t *testing.T) { upsert(t, db, 203, 200) },
			userID:        203,
			amount:        300,
			wantBalance:   200,
			wantErr:       true,
			checkFinalBal: true,
		},
		{
			name:    "account_missing_treated_as_insufficient",
			seed:    func(_ *sql.DB, _ *testing.T) {},
			userID:  999_999,
			amount:  100,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			tt.seed(db, t)

			repo := New(db)

			ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
			defer cancel()

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			defer func() { _ = tx.Rollback() }()

			err = repo.DecreaseBalance(tx, tt.userID, tt.amount)

			if tt.wantErr {
				if !errors.Is(err, accounts.ErrInsufficientFunds) {
					t.Fatalf("expected ErrInsufficientFunds, got: %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("decrease balance: %v", err)
				}

				err = tx.Commit()
				if err != nil {
					t.Fatalf("commit: %v", err)
				}
			}

			if tt.checkFinalBal {
				got, gerr := repo.GetBalance(ctx, tt.userID)
				if gerr != nil {
					t.Fatalf("get balance after decrease: %v", gerr)
				}

				if got != tt.wantBalance {
					t.Fatalf("final balance mismatch: want %d, got %d", tt.wantBalance, got)
				}
			}
		})
	}
}

func TestAccounts_DecreaseBalance_ConcurrentGuard(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	upsert(t, db, 1, 1000)

	var (
		wg                    sync.WaitGroup
		mu                    sync.Mutex
		success, insufficient int
	)

	worker := func(name string) {
		defer wg.Done()

		tx, err := db.BeginTx(context.Background(), nil)
		if err != nil {
			t.Errorf("[%s] begin tx: %v", name, err)
			return
		}
		//nolint:errcheck
		defer tx.Rollback()

		_, err = repo.LockAndGetBalance(tx, 1)
		if err != nil {
			t.Errorf("[%s] lock balance: %v", name, err)
			return
		}

		err = repo.DecreaseBalance(tx, 1, 1000)
		if err == nil {
			mu.Lock()
			success++
			mu.Unlock()

			if err := tx.Commit(); err != nil {
				t.Errorf("[%s] commit: %v", name, err)
			}

			return
		}

		if errors.Is(err, accounts.ErrInsufficientFunds) {
			mu.Lock()
			insufficient++
			mu.Unlock()

			return
		}

		t.Errorf("[%s] unexpected error: %v", name, err)
	}

	wg.Add(2)
	go worker("A")
	go worker("B")
	wg.Wait()

	if success != 1 || insufficient != 1 {
		t.Fatalf("want 1 success and 1 insufficient, got success=%d insufficient=%d", success, insufficient)
	}
}
