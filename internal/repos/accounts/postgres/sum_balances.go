package accounts

import (
	"database/sql"
	"fmt"
)

func (r *accountsRepo) SumBalances(tx *sql.Tx) (int64, error) {
	var sum int64

	err := tx.QueryRow(`SELECT COALESCE(SUM(balance), 0)::BIGINT FROM accounts`).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum balances: %w", err)
	}

	return sum, nil
}
