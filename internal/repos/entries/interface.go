package entries

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDuplicateReference = errors.New("duplicate entry reference")

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindStake      Kind = "stake"
	KindWin        Kind = "win"
	KindRefund     Kind = "refund"
)

// Entry is one append-only ledger posting. Amount is signed from the
// player's point of view: stakes and withdrawals are negative.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	UserID      uint64    `json:"userId"`
	Amount      int64     `json:"amount"`
	Kind        Kind      `json:"kind"`
	Reference   string    `json:"reference,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Entries interface {
	// Insert fails with ErrDuplicateReference when an entry of the same kind
	// already carries the same non-empty reference.
	Insert(tx *sql.Tx, e Entry) error
	ListByUser(ctx context.Context, userID uint64, limit int) ([]Entry, error)
	// SumByKind returns the signed total of every kind present.
	SumByKind(tx *sql.Tx) (map[Kind]int64, error)
}
