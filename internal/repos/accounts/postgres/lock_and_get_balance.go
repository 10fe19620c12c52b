package accounts

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/repos/accounts"
)

func (r *accountsRepo) LockAndGetBalance(tx *sql.Tx, userID uint64) (int64, error) {
	var balance int64

	err := tx.QueryRow(`
		SELECT balance
		FROM accounts
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, accounts.ErrAccountNotFound
		}

		return 0, fmt.Errorf("lock/get balance: %w", err)
	}

	return balance, nil
}
