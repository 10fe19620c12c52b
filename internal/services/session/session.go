package session

import (
	"errors"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/reward"
	"github.com/google/uuid"
)

var (
	ErrSessionAlreadyActive = errors.New("session already active")
	ErrInvalidSessionState  = errors.New("invalid session state")
)

// Kind names a progressive game. A user holds at most one active session
// per kind.
type Kind string

const (
	KindGrid  Kind = "mines"
	KindClimb Kind = "tower"
	KindRace  Kind = "race"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindGrid, KindClimb, KindRace:
		return k, true
	default:
		return "", false
	}
}

type State string

const (
	StateActive    State = "active"
	StateCashedOut State = "cashed_out"
	StateLost      State = "lost"
	StateRefunded  State = "refunded"
)

func (s State) Terminal() bool { return s != StateActive }

// Session is the envelope shared by every progressive game. Payload holds
// the per-kind board and is one of *GridPayload, *ClimbPayload or
// *RacePayload.
type Session struct {
	ID         uuid.UUID `json:"id"`
	UserID     uint64    `json:"userId"`
	Kind       Kind      `json:"kind"`
	Stake      int64     `json:"stake"`
	Multiplier float64   `json:"multiplier"`
	Steps      int       `json:"steps"`
	State      State     `json:"state"`
	Payout     int64     `json:"payout,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Payload    Payload   `json:"payload"`
}

// Ref is the ledger reference for every posting of this session.
func (s *Session) Ref() string { return "session:" + s.ID.String() }

// Clone returns a deep copy.
func (s *Session) Clone() Session {
	out := *s
	if s.Payload != nil {
		out.Payload = s.Payload.clone()
	}

	return out
}

// Payload is the sealed set of per-kind session states.
type Payload interface {
	Kind() Kind
	clone() Payload
}

// GridPayload is a board of Cells with hidden hazards.
type GridPayload struct {
	Cells    int          `json:"cells"`
	Hazards  int          `json:"hazards"`
	Curve    reward.Curve `json:"curve"`
	Revealed []int        `json:"revealed"`
	// HazardCells is hidden from players until the session ends.
	HazardCells []int `json:"-"`
}

func (*GridPayload) Kind() Kind { return KindGrid }

func (p *GridPayload) clone() Payload {
	out := *p
	out.Curve = append(reward.Curve(nil), p.Curve...)
	out.Revealed = append([]int(nil), p.Revealed...)
	out.HazardCells = append([]int(nil), p.HazardCells...)

	return &out
}

func (p *GridPayload) IsRevealed(cell int) bool {
	for _, c := range p.Revealed {
		if c == cell {
			return true
		}
	}

	return false
}

func (p *GridPayload) IsHazard(cell int) bool {
	for _, c := range p.HazardCells {
		if c == cell {
			return true
		}
	}

	return false
}

// ClimbPayload is a tower of Floors, each with Columns doors of which some
// are hazards.
type ClimbPayload struct {
	Difficulty string       `json:"difficulty"`
	Columns    int          `json:"columns"`
	Floors     int          `json:"floors"`
	Curve      reward.Curve `json:"curve"`
	Picks      []int        `json:"picks"`
	// Layout[f] lists the hazard columns of floor f.
	Layout [][]int `json:"-"`
}

func (*ClimbPayload) Kind() Kind { return KindClimb }

func (p *ClimbPayload) clone() Payload {
	out := *p
	out.Curve = append(reward.Curve(nil), p.Curve...)
	out.Picks = append([]int(nil), p.Picks...)

	out.Layout = make([][]int, len(p.Layout))
	for i, f := range p.Layout {
		out.Layout[i] = append([]int(nil), f...)
	}

	return &out
}

// RacePayload drives a multiplier that rises every tick until it reaches a
// stop point fixed at start.
type RacePayload struct {
	StopPoint float64  `json:"-"`
	Events    []string `json:"events"`
}

func (*RacePayload) Kind() Kind { return KindRace }

func (p *RacePayload) clone() Payload {
	out := *p
	out.Events = append([]string(nil), p.Events...)

	return &out
}
