package housefunds

import (
	"context"
	"database/sql"
)

// Funds tracks chips crossing the house boundary. TotalOut grows when stakes
// leave player circulation, TotalIn when wins and refunds return to it.
type Funds struct {
	TotalIn  int64 `json:"totalIn"`
	TotalOut int64 `json:"totalOut"`
}

// Net is what the house holds on behalf of settled and pending play.
func (f Funds) Net() int64 { return f.TotalOut - f.TotalIn }

type HouseFunds interface {
	Add(tx *sql.Tx, in, out int64) error
	Get(ctx context.Context) (Funds, error)
	GetTx(tx *sql.Tx) (Funds, error)
}
