package accounts

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
)

// Accounts stores one balance per user. Write methods run inside the
// caller's transaction.
type Accounts interface {
	GetBalance(ctx context.Context, userID uint64) (int64, error)
	LockAndGetBalance(tx *sql.Tx, userID uint64) (int64, error)
	// IncreaseBalance creates the account on first credit.
	IncreaseBalance(tx *sql.Tx, userID uint64, amount int64) error
	// DecreaseBalance never lets a balance go negative; a missing account
	// is reported as ErrInsufficientFunds.
	DecreaseBalance(tx *sql.Tx, userID uint64, amount int64) error
	SumBalances(tx *sql.Tx) (int64, error)
}
