package reward

import "fmt"

// Entry is a contribution to a pool. It owns tickets [TicketFrom, TicketTo].
type Entry struct {
	UserID     uint64 `json:"userId"`
	Amount     int64  `json:"amount"`
	TicketFrom int64  `json:"ticketFrom"`
	TicketTo   int64  `json:"ticketTo"`
}

// Pool holds contiguous, non-overlapping ticket ranges covering [0, TotalStake).
// Pool is not safe for concurrent use; owners serialize access.
type Pool struct {
	Entries    []Entry `json:"entries"`
	TotalStake int64   `json:"totalStake"`
}

// Add appends a contribution and returns its entry.
func (p *Pool) Add(userID uint64, amount int64) (Entry, error) {
	if amount <= 0 {
		return Entry{}, fmt.Errorf("pool entry amount %d must be positive", amount)
	}

	e := Entry{
		UserID:     userID,
		Amount:     amount,
		TicketFrom: p.TotalStake,
		TicketTo:   p.TotalStake + amount - 1,
	}

	p.Entries = append(p.Entries, e)
	p.TotalStake += amount

	return e, nil
}

// Share returns the fraction of the pool contributed by userID.
func (p *Pool) Share(userID uint64) float64 {
	if p.TotalStake == 0 {
		return 0
	}

	var sum int64

	for _, e := range p.Entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}

	return float64(sum) / float64(p.TotalStake)
}

// Owner returns the entry covering ticket.
func (p *Pool) Owner(ticket int64) (Entry, bool) {
	for _, e := range p.Entries {
		if ticket >= e.TicketFrom && ticket <= e.TicketTo {
			return e, true
		}
	}

	return Entry{}, false
}

// Clone returns a copy that does not share entries.
func (p *Pool) Clone() Pool {
	out := Pool{TotalStake: p.TotalStake}
	out.Entries = append([]Entry(nil), p.Entries...)

	return out
}

// RollTicketDraw draws a winning ticket uniformly over [0, TotalStake) and
// returns the entry that owns it together with the ticket.
func (e *Engine) RollTicketDraw(pool *Pool) (Entry, int64, error) {
	if pool == nil || pool.TotalStake <= 0 || len(pool.Entries) == 0 {
		return Entry{}, 0, ErrEmptyPool
	}

	ticket := randInt64(e.src, pool.TotalStake)

	winner, ok := pool.Owner(ticket)
	if !ok {
		return Entry{}, 0, fmt.Errorf("ticket %d not covered: %w", ticket, ErrRngConfiguration)
	}

	return winner, ticket, nil
}
