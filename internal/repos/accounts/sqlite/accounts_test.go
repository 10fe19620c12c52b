package accounts

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/EmeraldIsleCasino/wagercore/internal/infra/sqlitetestutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/repos/accounts"
)

func seedAccount(t *testing.T, db *sql.DB, id uint64, bal int64) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO accounts (user_id, balance) VALUES (?, ?)`, id, bal)
	if err != nil {
		t.Fatalf("seed account(%d): %v", id, err)
	}
}

func TestAccounts_DecreaseBalance_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		seed        int64 // -1: no account
		amount      int64
		wantBalance int64
		wantErr     error
	}{
		{name: "sufficient_funds", seed: 1_000, amount: 250, wantBalance: 750},
		{name: "exact_to_zero", seed: 300, amount: 300, wantBalance: 0},
		{name: "insufficient_unchanged", seed: 200, amount: 300, wantBalance: 200, wantErr: accounts.ErrInsufficientFunds},
		{name: "missing_account", seed: -1, amount: 100, wantErr: accounts.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := sqlitetestutil.NewTestDB(t)
			defer cleanup()

			if tt.seed >= 0 {
				seedAccount(t, db, 1, tt.seed)
			}

			repo := New(db)
			ctx := t.Context()

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}

			err = repo.DecreaseBalance(tx, 1, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				_ = tx.Rollback()
				t.Fatalf("decrease: want %v, got %v", tt.wantErr, err)
			}

			if err != nil {
				_ = tx.Rollback()
			} else if cerr := tx.Commit(); cerr != nil {
				t.Fatalf("commit: %v", cerr)
			}

			if tt.seed < 0 {
				return
			}

			got, err := repo.GetBalance(ctx, 1)
			if err != nil {
				t.Fatalf("get balance: %v", err)
			}

			if got != tt.wantBalance {
				t.Fatalf("final balance: want %d, got %d", tt.wantBalance, got)
			}
		})
	}
}

func TestAccounts_IncreaseBalance_UpsertsAndSums(t *testing.T) {
	t.Parallel()

	db, cleanup := sqlitetestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	ctx := t.Context()

	_, err := repo.GetBalance(ctx, 9)
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}

	for _, step := range []struct {
		user   uint64
		amount int64
	}{{9, 500}, {9, 250}, {10, 100}} {
		err = repo.IncreaseBalance(tx, step.user, step.amount)
		if err != nil {
			_ = tx.Rollback()
			t.Fatalf("increase balance: %v", err)
		}
	}

	_, err = repo.LockAndGetBalance(tx, 11)
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		_ = tx.Rollback()
		t.Fatalf("lock missing: want ErrAccountNotFound, got %v", err)
	}

	sum, err := repo.SumBalances(tx)
	if err != nil {
		_ = tx.Rollback()
		t.Fatalf("sum balances: %v", err)
	}

	if sum != 850 {
		_ = tx.Rollback()
		t.Fatalf("sum: want %d, got %d", 850, sum)
	}

	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.GetBalance(ctx, 9)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}

	if got != 750 {
		t.Fatalf("balance: want %d, got %d", 750, got)
	}
}
