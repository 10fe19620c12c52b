package reward

import "errors"

var (
	// ErrRngConfiguration marks a misconfigured table or curve. Callers must
	// fail closed on it.
	ErrRngConfiguration = errors.New("rng configuration error")
	ErrEmptyPool        = errors.New("empty pool")
	ErrUnknownCategory  = errors.New("unknown outcome category")
)
