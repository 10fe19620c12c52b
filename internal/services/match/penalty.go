package match

import (
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/rng"
)

const (
	AimLeft   Move = "left"
	AimCenter Move = "center"
	AimRight  Move = "right"
)

const (
	regulationShots  = 5
	suddenDeathLimit = 10
	// a keeper who guesses right still concedes when the draw is <= 0.3
	saveThreshold = 0.3
)

// Penalty is a shootout. Each round one side shoots and the other keeps,
// both picking a direction; the first seat shoots first.
type Penalty struct{}

func (Penalty) Kind() Kind { return KindPenalty }
func (Penalty) Crew() (minimum, maximum int) { return 2, 2 }

func (Penalty) Seat(*Match, *Participant, JoinOptions) error { return nil }

func (Penalty) ValidateMove(_ *Match, _ int, mv Move) error {
	switch mv {
	case AimLeft, AimCenter, AimRight:
		return nil
	default:
		return fmt.Errorf("direction %q: %w", mv, ErrInvalidMove)
	}
}

// Shooter returns the seat taking the next shot.
func (Penalty) Shooter(m *Match) int {
	if m.Participants[0].Shots > m.Participants[1].Shots {
		return 1
	}

	return 0
}

func (r Penalty) Resolve(m *Match, moves []Move, src rng.Source) (RoundLog, *Result) {
	s := r.Shooter(m)
	k := 1 - s

	saved := moves[s] == moves[k] && src.Float64() > saveThreshold

	shooter := &m.Participants[s]
	shooter.Shots++

	note := "goal"
	if saved {
		note = "saved"
	} else {
		shooter.Goals++
	}

	log := RoundLog{Round: m.Round + 1, Actions: make([]Action, 2)}
	for i, p := range m.Participants {
		log.Actions[i] = Action{UserID: p.UserID, Move: moves[i]}
	}

	log.Actions[s].Notes = []string{"shot", note}
	log.Actions[k].Notes = []string{"keeper", note}

	if !saved {
		log.Actions[s].Dealt = 1
		log.Actions[k].Received = 1
	}

	return log, shootoutResult(m)
}

// shootoutResult ends the shootout when regulation can no longer be tied,
// when a sudden-death pair separates the sides or when the sudden-death
// limit runs out.
func shootoutResult(m *Match) *Result {
	a, b := m.Participants[0], m.Participants[1]

	if a.Shots <= regulationShots && b.Shots <= regulationShots {
		leftA := regulationShots - a.Shots
		leftB := regulationShots - b.Shots

		switch {
		case a.Goals > b.Goals+leftB:
			return winner(m, a.UserID)
		case b.Goals > a.Goals+leftA:
			return winner(m, b.UserID)
		}
	}

	if a.Shots != b.Shots || a.Shots < regulationShots {
		return nil
	}

	switch {
	case a.Goals > b.Goals:
		return winner(m, a.UserID)
	case b.Goals > a.Goals:
		return winner(m, b.UserID)
	case a.Shots >= regulationShots+suddenDeathLimit:
		return &Result{Outcome: OutcomeDraw}
	default:
		return nil
	}
}
