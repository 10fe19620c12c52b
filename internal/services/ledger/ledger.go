package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/infra/dbutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/repos/accounts"
	pgaccounts "github.com/EmeraldIsleCasino/wagercore/internal/repos/accounts/postgres"
	liteaccounts "github.com/EmeraldIsleCasino/wagercore/internal/repos/accounts/sqlite"
	"github.com/EmeraldIsleCasino/wagercore/internal/repos/entries"
	pgentries "github.com/EmeraldIsleCasino/wagercore/internal/repos/entries/postgres"
	liteentries "github.com/EmeraldIsleCasino/wagercore/internal/repos/entries/sqlite"
	"github.com/EmeraldIsleCasino/wagercore/internal/repos/housefunds"
	pghouse "github.com/EmeraldIsleCasino/wagercore/internal/repos/housefunds/postgres"
	litehouse "github.com/EmeraldIsleCasino/wagercore/internal/repos/housefunds/sqlite"
	"github.com/google/uuid"
)

type (
	Entry      = entries.Entry
	EntryKind  = entries.Kind
	HouseFunds = housefunds.Funds
)

// Service is the only writer of balances. Every operation commits the
// balance change, its audit entry and the house-funds update together or
// not at all.
type Service struct {
	db      *sql.DB
	dialect dbutil.Dialect
	now     func() time.Time

	accounts accounts.Accounts
	entries  entries.Entries
	house    housefunds.HouseFunds
}

func New(db *sql.DB, dialect dbutil.Dialect) *Service {
	s := &Service{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}

	switch dialect {
	case dbutil.SQLite:
		s.accounts = liteaccounts.New(db)
		s.entries = liteentries.New(db)
		s.house = litehouse.New(db)
	default:
		s.accounts = pgaccounts.New(db)
		s.entries = pgentries.New(db)
		s.house = pghouse.New(db)
	}

	return s
}

// posting describes one atomic ledger movement.
type posting struct {
	userID      uint64
	amount      int64
	kind        entries.Kind
	reference   string
	description string
	houseIn     int64
	houseOut    int64
}

func (p posting) debit() bool {
	return p.kind == entries.KindStake || p.kind == entries.KindWithdrawal
}

// post runs the full flow in a single DB transaction:
//
// 1) Lock the account row (debits only).
// 2) Apply the balance change.
// 3) Append the entry (duplicate reference -> ErrConcurrencyConflict).
// 4) Move house funds.
func (s *Service) post(ctx context.Context, p posting) error {
	if p.amount <= 0 {
		return fmt.Errorf("amount %d: %w", p.amount, ErrInvalidAmount)
	}

	return dbutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		signed := p.amount

		if p.debit() {
			balance, err := s.accounts.LockAndGetBalance(tx, p.userID)
			if err != nil {
				if errors.Is(err, accounts.ErrAccountNotFound) {
					return fmt.Errorf("pre-check decrease: %w", ErrInsufficientFunds)
				}

				return fmt.Errorf("lock and get balance: %w", err)
			}

			if balance < p.amount {
				return fmt.Errorf("pre-check decrease: %w", ErrInsufficientFunds)
			}

			err = s.accounts.DecreaseBalance(tx, p.userID, p.amount)
			if err != nil {
				return fmt.Errorf("decrease balance: %w", err)
			}

			signed = -p.amount
		} else {
			err := s.accounts.IncreaseBalance(tx, p.userID, p.amount)
			if err != nil {
				return fmt.Errorf("increase balance: %w", err)
			}
		}

		err := s.entries.Insert(tx, entries.Entry{
			ID:          uuid.New(),
			UserID:      p.userID,
			Amount:      signed,
			Kind:        p.kind,
			Reference:   p.reference,
			Description: p.description,
			CreatedAt:   s.now(),
		})
		if err != nil {
			if errors.Is(err, entries.ErrDuplicateReference) {
				return fmt.Errorf("%s %q: %w", p.kind, p.reference, ErrConcurrencyConflict)
			}

			return fmt.Errorf("insert entry: %w", err)
		}

		if p.houseIn != 0 || p.houseOut != 0 {
			err = s.house.Add(tx, p.houseIn, p.houseOut)
			if err != nil {
				return fmt.Errorf("add house funds: %w", err)
			}
		}

		return nil
	})
}

// GetBalance returns the user's balance without taking locks.
func (s *Service) GetBalance(ctx context.Context, userID uint64) (int64, error) {
	balance, err := s.accounts.GetBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// ReserveStake moves amount out of the player's balance into escrow.
func (s *Service) ReserveStake(ctx context.Context, userID uint64, amount int64, ref string) error {
	err := s.post(ctx, posting{
		userID:    userID,
		amount:    amount,
		kind:      entries.KindStake,
		reference: ref,
		houseOut:  amount,
	})
	if err != nil {
		return fmt.Errorf("reserve stake: %w", err)
	}

	return nil
}

// SettleWin credits a payout.
func (s *Service) SettleWin(ctx context.Context, userID uint64, amount int64, ref string) error {
	err := s.post(ctx, posting{
		userID:    userID,
		amount:    amount,
		kind:      entries.KindWin,
		reference: ref,
		houseIn:   amount,
	})
	if err != nil {
		return fmt.Errorf("settle win: %w", err)
	}

	return nil
}

// Refund returns an escrowed stake.
func (s *Service) Refund(ctx context.Context, userID uint64, amount int64, ref string) error {
	err := s.post(ctx, posting{
		userID:    userID,
		amount:    amount,
		kind:      entries.KindRefund,
		reference: ref,
		houseIn:   amount,
	})
	if err != nil {
		return fmt.Errorf("refund: %w", err)
	}

	return nil
}

// Deposit issues chips to a player. ref is optional; when set, a replay of
// the same ref is rejected with ErrConcurrencyConflict.
func (s *Service) Deposit(ctx context.Context, userID uint64, amount int64, ref, description string) error {
	err := s.post(ctx, posting{
		userID:      userID,
		amount:      amount,
		kind:        entries.KindDeposit,
		reference:   ref,
		description: description,
	})
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}

	return nil
}

// Withdraw removes chips from circulation.
func (s *Service) Withdraw(ctx context.Context, userID uint64, amount int64, ref, description string) error {
	err := s.post(ctx, posting{
		userID:      userID,
		amount:      amount,
		kind:        entries.KindWithdrawal,
		reference:   ref,
		description: description,
	})
	if err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}

	return nil
}

func (s *Service) GetHouseFunds(ctx context.Context) (HouseFunds, error) {
	f, err := s.house.Get(ctx)
	if err != nil {
		return HouseFunds{}, fmt.Errorf("get house funds: %w", err)
	}

	return f, nil
}

// Entries returns up to limit entries for userID, newest first.
func (s *Service) Entries(ctx context.Context, userID uint64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	list, err := s.entries.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	return list, nil
}

// Report is a point-in-time view of the books.
type Report struct {
	Balances    int64      `json:"balances"`
	House       HouseFunds `json:"house"`
	HouseNet    int64      `json:"houseNet"`
	Deposits    int64      `json:"deposits"`
	Withdrawals int64      `json:"withdrawals"`
	// Balanced is sum(balances) + houseNet == deposits - withdrawals.
	Balanced bool `json:"balanced"`
}

// Reconcile reads balances, house funds and issuance totals from one
// snapshot and checks that no chip was created or destroyed.
func (s *Service) Reconcile(ctx context.Context) (Report, error) {
	var opts *sql.TxOptions
	if s.dialect == dbutil.Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}

	var r Report

	err := dbutil.WithTxOptions(ctx, s.db, opts, func(tx *sql.Tx) error {
		balances, err := s.accounts.SumBalances(tx)
		if err != nil {
			return fmt.Errorf("sum balances: %w", err)
		}

		house, err := s.house.GetTx(tx)
		if err != nil {
			return fmt.Errorf("house funds: %w", err)
		}

		sums, err := s.entries.SumByKind(tx)
		if err != nil {
			return fmt.Errorf("sum entries: %w", err)
		}

		r = Report{
			Balances:    balances,
			House:       house,
			HouseNet:    house.Net(),
			Deposits:    sums[entries.KindDeposit],
			Withdrawals: -sums[entries.KindWithdrawal],
		}
		r.Balanced = r.Balances+r.HouseNet == r.Deposits-r.Withdrawals

		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: %w", err)
	}

	return r, nil
}
