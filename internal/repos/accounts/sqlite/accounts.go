// Package accounts is the SQLite account store. The connection pool is held
// at one connection, so the open transaction already excludes every other
// writer and no row lock is taken.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/repos/accounts"
)

var _ accounts.Accounts = (*accountsRepo)(nil)

type accountsRepo struct{ db *sql.DB }

func New(db *sql.DB) *accountsRepo {
	return &accountsRepo{db: db}
}

func (r *accountsRepo) GetBalance(ctx context.Context, userID uint64) (int64, error) {
	var balance int64

	err := r.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE user_id = ?`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, accounts.ErrAccountNotFound
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

func (r *accountsRepo) LockAndGetBalance(tx *sql.Tx, userID uint64) (int64, error) {
	var balance int64

	err := tx.QueryRow(`SELECT balance FROM accounts WHERE user_id = ?`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, accounts.ErrAccountNotFound
		}

		return 0, fmt.Errorf("lock/get balance: %w", err)
	}

	return balance, nil
}

func (r *accountsRepo) IncreaseBalance(tx *sql.Tx, userID uint64, amount int64) error {
	_, err := tx.Exec(`
		INSERT INTO accounts (user_id, balance)
		VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = balance + excluded.balance,
		    updated_at = CURRENT_TIMESTAMP
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("increase balance: %w", err)
	}

	return nil
}

func (r *accountsRepo) DecreaseBalance(tx *sql.Tx, userID uint64, amount int64) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET balance = balance - ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
		  AND balance >= ?
	`, amount, userID, amount)
	if err != nil {
		return fmt.Errorf("decrease balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return accounts.ErrInsufficientFunds
	}

	return nil
}

func (r *accountsRepo) SumBalances(tx *sql.Tx) (int64, error) {
	var sum int64

	err := tx.QueryRow(`SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum balances: %w", err)
	}

	return sum, nil
}
