package housefunds

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/repos/housefunds"
)

var _ housefunds.HouseFunds = (*houseRepo)(nil)

type houseRepo struct{ db *sql.DB }

func New(db *sql.DB) *houseRepo {
	return &houseRepo{db: db}
}

func (r *houseRepo) Add(tx *sql.Tx, in, out int64) error {
	res, err := tx.Exec(`
		UPDATE house_funds
		SET total_in = total_in + ?,
		    total_out = total_out + ?
		WHERE id = 1
	`, in, out)
	if err != nil {
		return fmt.Errorf("update house funds: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected != 1 {
		return fmt.Errorf("house funds row missing")
	}

	return nil
}

func (r *houseRepo) Get(ctx context.Context) (housefunds.Funds, error) {
	var f housefunds.Funds

	err := r.db.QueryRowContext(ctx, `SELECT total_in, total_out FROM house_funds WHERE id = 1`).
		Scan(&f.TotalIn, &f.TotalOut)
	if err != nil {
		return housefunds.Funds{}, fmt.Errorf("get house funds: %w", err)
	}

	return f, nil
}

func (r *houseRepo) GetTx(tx *sql.Tx) (housefunds.Funds, error) {
	var f housefunds.Funds

	err := tx.QueryRow(`SELECT total_in, total_out FROM house_funds WHERE id = 1`).
		Scan(&f.TotalIn, &f.TotalOut)
	if err != nil {
		return housefunds.Funds{}, fmt.Errorf("get house funds: %w", err)
	}

	return f, nil
}
