package ledger

import (
	"errors"

	"github.com/EmeraldIsleCasino/wagercore/internal/repos/accounts"
)

var (
	ErrInsufficientFunds = accounts.ErrInsufficientFunds
	ErrAccountNotFound   = accounts.ErrAccountNotFound
	ErrInvalidAmount     = errors.New("invalid amount")
	// ErrConcurrencyConflict means the reference was already settled. The
	// first posting stands and nothing was changed.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
