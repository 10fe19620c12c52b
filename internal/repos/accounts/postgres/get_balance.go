package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/repos/accounts"
)

func (r *accountsRepo) GetBalance(ctx context.Context, userID uint64) (int64, error) {
	var balance int64

	err := r.db.QueryRowContext(ctx, `
		SELECT balance
		FROM accounts
		WHERE user_id = $1
	`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, accounts.ErrAccountNotFound
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}
