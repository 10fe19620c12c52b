package accounts

import (
	"database/sql"
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/repos/accounts"
)

func (r *accountsRepo) DecreaseBalance(tx *sql.Tx, userID uint64, amount int64) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET balance = balance - $2,
		    updated_at = now()
		WHERE user_id = $1
		  AND balance >= $2
	`, userID, amount)
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
