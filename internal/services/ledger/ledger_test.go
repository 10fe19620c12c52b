package ledger_test

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/EmeraldIsleCasino/wagercore/internal/infra/dbutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/pgtestutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/ledger"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/ledger/ledgertest"
)

func TestLedger_ReserveSettleRefund(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		run         func(t *testing.T, svc *ledger.Service) error
		wantErr     error
		wantBalance int64
		wantHouse   ledger.HouseFunds
	}{
		{
			name: "reserve_then_win",
			run: func(t *testing.T, svc *ledger.Service) error {
				err := svc.ReserveStake(t.Context(), 1, 100, "session:a")
				if err != nil {
					return err
				}

				return svc.SettleWin(t.Context(), 1, 200, "session:a")
			},
			wantBalance: 1100,
			wantHouse:   ledger.HouseFunds{TotalIn: 200, TotalOut: 100},
		},
		{
			name: "reserve_then_lose",
			run: func(t *testing.T, svc *ledger.Service) error {
				return svc.ReserveStake(t.Context(), 1, 100, "session:b")
			},
			wantBalance: 900,
			wantHouse:   ledger.HouseFunds{TotalOut: 100},
		},
		{
			name: "reserve_then_refund",
			run: func(t *testing.T, svc *ledger.Service) error {
				err := svc.ReserveStake(t.Context(), 1, 300, "match:c:1")
				if err != nil {
					return err
				}

				return svc.Refund(t.Context(), 1, 300, "match:c:1")
			},
			wantBalance: 1000,
			wantHouse:   ledger.HouseFunds{TotalIn: 300, TotalOut: 300},
		},
		{
			name: "insufficient_funds_leaves_balance",
			run: func(t *testing.T, svc *ledger.Service) error {
				return svc.ReserveStake(t.Context(), 1, 1001, "session:d")
			},
			wantErr:     ledger.ErrInsufficientFunds,
			wantBalance: 1000,
		},
		{
			name: "zero_amount_rejected",
			run: func(t *testing.T, svc *ledger.Service) error {
				return svc.ReserveStake(t.Context(), 1, 0, "session:e")
			},
			wantErr:     ledger.ErrInvalidAmount,
			wantBalance: 1000,
		},
		{
			name: "negative_win_rejected",
			run: func(t *testing.T, svc *ledger.Service) error {
				return svc.SettleWin(t.Context(), 1, -5, "session:f")
			},
			wantErr:     ledger.ErrInvalidAmount,
			wantBalance: 1000,
		},
		{
			name: "duplicate_settlement_is_conflict",
			run: func(t *testing.T, svc *ledger.Service) error {
				err := svc.ReserveStake(t.Context(), 1, 100, "session:g")
				if err != nil {
					return err
				}

				err = svc.SettleWin(t.Context(), 1, 150, "session:g")
				if err != nil {
					return err
				}

				return svc.SettleWin(t.Context(), 1, 150, "session:g")
			},
			wantErr:     ledger.ErrConcurrencyConflict,
			wantBalance: 1050,
			wantHouse:   ledger.HouseFunds{TotalIn: 150, TotalOut: 100},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := ledgertest.New(t)
			ledgertest.Fund(t, svc, 1000, 1)

			err := tt.run(t, svc)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error: want %v, got %v", tt.wantErr, err)
			}

			got := ledgertest.Balance(t, svc, 1)
			if got != tt.wantBalance {
				t.Fatalf("balance: want %d, got %d", tt.wantBalance, got)
			}

			house, err := svc.GetHouseFunds(t.Context())
			if err != nil {
				t.Fatalf("house funds: %v", err)
			}

			if house != tt.wantHouse {
				t.Fatalf("house funds: want %+v, got %+v", tt.wantHouse, house)
			}

			ledgertest.RequireBalanced(t, svc)
		})
	}
}

func TestLedger_UnknownAccount(t *testing.T) {
	t.Parallel()

	svc := ledgertest.New(t)

	_, err := svc.GetBalance(t.Context(), 42)
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("get balance: want ErrAccountNotFound, got %v", err)
	}

	err = svc.ReserveStake(t.Context(), 42, 10, "session:x")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("reserve: want ErrInsufficientFunds, got %v", err)
	}

	// a credit opens the account
	err = svc.SettleWin(t.Context(), 42, 10, "jackpot:y")
	if err != nil {
		t.Fatalf("settle win: %v", err)
	}

	if got := ledgertest.Balance(t, svc, 42); got != 10 {
		t.Fatalf("balance: want %d, got %d", 10, got)
	}
}

func TestLedger_DepositWithdraw(t *testing.T) {
	t.Parallel()

	svc := ledgertest.New(t)
	ctx := t.Context()

	err := svc.Deposit(ctx, 5, 500, "bank:1", "top-up")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	err = svc.Deposit(ctx, 5, 500, "bank:1", "top-up replay")
	if !errors.Is(err, ledger.ErrConcurrencyConflict) {
		t.Fatalf("replayed deposit: want ErrConcurrencyConflict, got %v", err)
	}

	err = svc.Withdraw(ctx, 5, 600, "", "cash-out")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("overdraw: want ErrInsufficientFunds, got %v", err)
	}

	err = svc.Withdraw(ctx, 5, 200, "", "cash-out")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	r := ledgertest.RequireBalanced(t, svc)
	if r.Deposits != 500 || r.Withdrawals != 200 || r.Balances != 300 || r.HouseNet != 0 {
		t.Fatalf("report: %+v", r)
	}

	list, err := svc.Entries(ctx, 5, 10)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}

	if len(list) != 2 {
		t.Fatalf("entries: want %d, got %d", 2, len(list))
	}

	if list[0].Kind != "withdrawal" || list[0].Amount != -200 {
		t.Fatalf("newest entry: %+v", list[0])
	}
}

// Two reservations that together exceed the balance: exactly one wins.
func TestLedger_ConcurrentReserveExclusive(t *testing.T) {
	t.Parallel()

	svc := ledgertest.New(t)
	ledgertest.Fund(t, svc, 1000, 1)

	runConcurrentReserve(t, svc)
}

func TestLedger_ConcurrentReserveExclusive_Postgres(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := ledger.New(db, dbutil.Postgres)

	err := svc.Deposit(t.Context(), 1, 1000, "", "seed")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	runConcurrentReserve(t, svc)
}

func runConcurrentReserve(t *testing.T, svc *ledger.Service) {
	t.Helper()

	const workers = 8

	var (
		wg                    sync.WaitGroup
		success, insufficient atomic.Int64
	)

	wg.Add(workers)

	for i := range workers {
		go func() {
			defer wg.Done()

			err := svc.ReserveStake(t.Context(), 1, 600, fmt.Sprintf("race:%d", i))

			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, ledger.ErrInsufficientFunds):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	if success.Load() != 1 || insufficient.Load() != workers-1 {
		t.Fatalf("want 1 success and %d insufficient, got %d/%d", workers-1, success.Load(), insufficient.Load())
	}

	if got := ledgertest.Balance(t, svc, 1); got != 400 {
		t.Fatalf("balance: want %d, got %d", 400, got)
	}

	ledgertest.RequireBalanced(t, svc)
}

// Random interleaving of every operation must keep the books balanced and
// no balance negative.
func TestLedger_ConservationUnderLoad(t *testing.T) {
	t.Parallel()

	svc := ledgertest.New(t)
	users := []uint64{1, 2, 3, 4}
	ledgertest.Fund(t, svc, 5000, users...)

	var wg sync.WaitGroup

	for _, u := range users {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 40 {
				ref := fmt.Sprintf("load:%d:%d", u, i)

				err := svc.ReserveStake(t.Context(), u, 100+int64(i), ref)
				if err != nil {
					if !errors.Is(err, ledger.ErrInsufficientFunds) {
						t.Errorf("reserve: %v", err)
					}

					continue
				}

				switch i % 3 {
				case 0:
					err = svc.SettleWin(t.Context(), u, 250, ref)
				case 1:
					err = svc.Refund(t.Context(), u, 100+int64(i), ref)
				}

				if err != nil {
					t.Errorf("settle: %v", err)
				}
			}
		}()
	}

	wg.Wait()

	r := ledgertest.RequireBalanced(t, svc)
	if r.Deposits != 20000 {
		t.Fatalf("deposits: want %d, got %d", 20000, r.Deposits)
	}

	for _, u := range users {
		if b := ledgertest.Balance(t, svc, u); b < 0 {
			t.Fatalf("user %d negative balance %d", u, b)
		}
	}
}
