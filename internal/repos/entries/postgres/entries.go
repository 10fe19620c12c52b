package entries

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/infra/dbutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/repos/entries"
)

var _ entries.Entries = (*entriesRepo)(nil)

type entriesRepo struct{ db *sql.DB }

func New(db *sql.DB) *entriesRepo {
	return &entriesRepo{db: db}
}

func (r *entriesRepo) Insert(tx *sql.Tx, e entries.Entry) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (id, user_id, amount, kind, reference, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.UserID, e.Amount, string(e.Kind), e.Reference, e.Description, e.CreatedAt)
	if err != nil {
		if dbutil.IsUniqueViolation(err) {
			return entries.ErrDuplicateReference
		}

		return fmt.Errorf("insert entry: %w", err)
	}

	return nil
}

func (r *entriesRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]entries.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, kind, reference, description, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	return scanEntries(rows)
}

func (r *entriesRepo) SumByKind(tx *sql.Tx) (map[entries.Kind]int64, error) {
	rows, err := tx.Query(`
		SELECT kind, COALESCE(SUM(amount), 0)::BIGINT
		FROM ledger_entries
		GROUP BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("sum entries: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	return scanSums(rows)
}

func scanEntries(rows *sql.Rows) ([]entries.Entry, error) {
	var out []entries.Entry

	for rows.Next() {
		var (
			e    entries.Entry
			kind string
		)

		err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &kind, &e.Reference, &e.Description, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		e.Kind = entries.Kind(kind)
		out = append(out, e)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return out, nil
}

func scanSums(rows *sql.Rows) (map[entries.Kind]int64, error) {
	sums := make(map[entries.Kind]int64)

	for rows.Next() {
		var (
			kind string
			sum  int64
		)

		err := rows.Scan(&kind, &sum)
		if err != nil {
			return nil, fmt.Errorf("scan sum: %w", err)
		}

		sums[entries.Kind(kind)] = sum
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate sums: %w", err)
	}

	return sums, nil
}
