package entries

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/infra/dbutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/repos/entries"
	"github.com/google/uuid"
)

var _ entries.Entries = (*entriesRepo)(nil)

type entriesRepo struct{ db *sql.DB }

func New(db *sql.DB) *entriesRepo {
	return &entriesRepo{db: db}
}

func (r *entriesRepo) Insert(tx *sql.Tx, e entries.Entry) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (id, user_id, amount, kind, reference, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID.String(), e.UserID, e.Amount, string(e.Kind), e.Reference, e.Description, e.CreatedAt.UTC())
	if err != nil {
		if dbutil.IsUniqueViolation(err) {
			return entries.ErrDuplicateReference
		}

		return fmt.Errorf("insert entry: %w", err)
	}

	return nil
}

func (r *entriesRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]entries.Entry, error) {
	// rowid breaks ties between entries written within the same instant
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, kind, reference, description, created_at
		FROM ledger_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	var out []entries.Entry

	for rows.Next() {
		var (
			e    entries.Entry
			id   string
			kind string
		)

		err = rows.Scan(&id, &e.UserID, &e.Amount, &kind, &e.Reference, &e.Description, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		e.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse entry id %q: %w", id, err)
		}

		e.Kind = entries.Kind(kind)
		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return out, nil
}

func (r *entriesRepo) SumByKind(tx *sql.Tx) (map[entries.Kind]int64, error) {
	rows, err := tx.Query(`SELECT kind, COALESCE(SUM(amount), 0) FROM ledger_entries GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("sum entries: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	sums := make(map[entries.Kind]int64)

	for rows.Next() {
		var (
			kind string
			sum  int64
		)

		err = rows.Scan(&kind, &sum)
		if err != nil {
			return nil, fmt.Errorf("scan sum: %w", err)
		}

		sums[entries.Kind(kind)] = sum
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate sums: %w", err)
	}

	return sums, nil
}
