// Package match runs multiplayer contests with equal escrow: one-on-one
// fights resolved round by round and cooperative team heists.
package match

import (
	"errors"
	"maps"
	"strconv"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/reward"
	"github.com/EmeraldIsleCasino/wagercore/internal/rng"
	"github.com/google/uuid"
)

var (
	ErrInvalidMatchState    = errors.New("invalid match state")
	ErrMoveAlreadySubmitted = errors.New("move already submitted")
	ErrAlreadyInMatch       = errors.New("user already in an unfinished match")
	ErrInvalidMove          = errors.New("invalid move")
	ErrInvalidRole          = errors.New("invalid role")
	ErrNotParticipant       = errors.New("not a participant")
	ErrNotCreator           = errors.New("only the creator may cancel")
)

type Kind string

const (
	KindDuel    Kind = "duel"
	KindBoxing  Kind = "boxing"
	KindPenalty Kind = "penalty"
	KindHeist   Kind = "heist"
)

type State string

const (
	StateWaiting  State = "waiting"
	StateActive   State = "active"
	StateFinished State = "finished"
)

// Move is a participant's action for one round.
type Move string

// JoinOptions carries per-kind seat parameters.
type JoinOptions struct {
	Role string `json:"role,omitempty"`
}

// Participant holds one seat and its resources. Only the fields relevant to
// the match kind are used.
type Participant struct {
	UserID  uint64 `json:"userId"`
	Role    string `json:"role,omitempty"`
	HP      int    `json:"hp,omitempty"`
	Stamina int    `json:"stamina,omitempty"`
	Goals   int    `json:"goals,omitempty"`
	Shots   int    `json:"shots,omitempty"`
}

// Action is what one participant did in a round.
type Action struct {
	UserID   uint64   `json:"userId"`
	Move     Move     `json:"move"`
	Dealt    int      `json:"dealt,omitempty"`
	Received int      `json:"received,omitempty"`
	Notes    []string `json:"notes,omitempty"`
}

type RoundLog struct {
	Round   int      `json:"round"`
	Actions []Action `json:"actions"`
}

type Outcome string

const (
	OutcomeWin       Outcome = "win"
	OutcomeDraw      Outcome = "draw"
	OutcomeSuccess   Outcome = "heist_success"
	OutcomeFailure   Outcome = "heist_failure"
	OutcomeCancelled Outcome = "cancelled"
)

// Refunds reports whether the outcome returns every stake.
func (o Outcome) Refunds() bool { return o == OutcomeDraw || o == OutcomeCancelled }

// Result is the final outcome. Payouts maps user to the amount credited.
type Result struct {
	Outcome       Outcome          `json:"outcome"`
	WinnerID      uint64           `json:"winnerId,omitempty"`
	Payouts       map[uint64]int64 `json:"payouts,omitempty"`
	SuccessChance float64          `json:"successChance,omitempty"`
	Events        []string         `json:"events,omitempty"`
	Drops         []reward.Drop    `json:"drops,omitempty"`
}

// Match is a contest between participants who all staked Stake.
type Match struct {
	ID           uuid.UUID     `json:"id"`
	Kind         Kind          `json:"kind"`
	CreatorID    uint64        `json:"creatorId"`
	Stake        int64         `json:"stake"`
	State        State         `json:"state"`
	Participants []Participant `json:"participants"`
	Round        int           `json:"round"`
	// Submitted lists who has a pending move. The moves stay hidden until
	// the round resolves.
	Submitted []uint64   `json:"submitted,omitempty"`
	Log       []RoundLog `json:"log,omitempty"`
	Result    *Result    `json:"result,omitempty"`
	Settled   bool       `json:"settled"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	pending map[uint64]Move
}

// Pot is the sum of all escrowed stakes.
func (m *Match) Pot() int64 { return m.Stake * int64(len(m.Participants)) }

// Ref is the ledger reference for userID's postings in this match.
func (m *Match) Ref(userID uint64) string {
	return "match:" + m.ID.String() + ":" + strconv.FormatUint(userID, 10)
}

// Seat returns the index of userID among the participants or -1.
func (m *Match) Seat(userID uint64) int {
	for i, p := range m.Participants {
		if p.UserID == userID {
			return i
		}
	}

	return -1
}

func (m *Match) clone() Match {
	out := *m
	out.Participants = append([]Participant(nil), m.Participants...)
	out.Log = make([]RoundLog, len(m.Log))

	for i, l := range m.Log {
		out.Log[i] = RoundLog{Round: l.Round, Actions: append([]Action(nil), l.Actions...)}
	}

	out.pending = maps.Clone(m.pending)
	if out.pending == nil {
		out.pending = make(map[uint64]Move)
	}

	out.Submitted = nil

	for _, p := range m.Participants {
		if _, ok := m.pending[p.UserID]; ok {
			out.Submitted = append(out.Submitted, p.UserID)
		}
	}

	if m.Result != nil {
		r := *m.Result
		r.Payouts = maps.Clone(m.Result.Payouts)
		r.Events = append([]string(nil), m.Result.Events...)
		r.Drops = append([]reward.Drop(nil), m.Result.Drops...)
		out.Result = &r
	}

	return out
}

// Rules is the per-kind interaction function.
type Rules interface {
	Kind() Kind
	// Crew returns the participant count that activates the match and the
	// seat limit.
	Crew() (minimum, maximum int)
	// Seat prepares a new participant's resources.
	Seat(m *Match, p *Participant, opts JoinOptions) error
	ValidateMove(m *Match, seat int, mv Move) error
	// Resolve applies one round of moves, indexed by seat. A non-nil result
	// ends the match.
	Resolve(m *Match, moves []Move, src rng.Source) (RoundLog, *Result)
}

// finishOne settles a one-on-one fight once either side is out of HP.
func finishOne(m *Match) *Result {
	a, b := m.Participants[0], m.Participants[1]

	switch {
	case a.HP <= 0 && b.HP <= 0:
		return &Result{Outcome: OutcomeDraw}
	case b.HP <= 0:
		return winner(m, a.UserID)
	case a.HP <= 0:
		return winner(m, b.UserID)
	default:
		return nil
	}
}

func winner(m *Match, userID uint64) *Result {
	return &Result{
		Outcome:  OutcomeWin,
		WinnerID: userID,
		Payouts:  map[uint64]int64{userID: m.Pot()},
	}
}
