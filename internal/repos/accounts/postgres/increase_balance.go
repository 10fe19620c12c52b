package accounts

import (
	"database/sql"
	"fmt"
)

func (r *accountsRepo) IncreaseBalance(tx *sql.Tx, userID uint64, amount int64) error {
	_, err := tx.Exec(`
		INSERT INTO accounts (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance,
		    updated_at = now()
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("increase balance: %w", err)
	}

	return nil
}
