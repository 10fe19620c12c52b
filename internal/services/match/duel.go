package match

import (
	"fmt"
	"math"

	"github.com/EmeraldIsleCasino/wagercore/internal/rng"
)

const (
	duelHP = 100

	MoveAttack Move = "attack"
	MoveHeavy  Move = "heavy"
	MoveDefend Move = "defend"
	MoveDodge  Move = "dodge"
)

type span struct{ lo, hi int }

func (s span) roll(src rng.Source) int { return rng.Between(src, s.lo, s.hi) }

type duelStrike struct {
	damage   span
	crit     float64
	critMult float64
	miss     float64
}

var duelStrikes = map[Move]duelStrike{
	MoveAttack: {damage: span{15, 25}, crit: 0.15, critMult: 2.0},
	MoveHeavy:  {damage: span{25, 40}, crit: 0.10, critMult: 1.8, miss: 0.20},
}

const (
	defendReduction = 0.6
	defendCounter   = 0.25
	dodgeChance     = 0.60
	dodgeCounter    = 0.40
)

var (
	defendCounterDamage = span{10, 15}
	dodgeCounterDamage  = span{8, 12}
)

// Duel is the arena fight: two fighters, simultaneous moves, first to zero
// HP loses.
type Duel struct{}

func (Duel) Kind() Kind { return KindDuel }
func (Duel) Crew() (minimum, maximum int) { return 2, 2 }

func (Duel) Seat(_ *Match, p *Participant, _ JoinOptions) error {
	p.HP = duelHP
	return nil
}

func (Duel) ValidateMove(_ *Match, _ int, mv Move) error {
	switch mv {
	case MoveAttack, MoveHeavy, MoveDefend, MoveDodge:
		return nil
	default:
		return fmt.Errorf("duel move %q: %w", mv, ErrInvalidMove)
	}
}

// Resolve plays the first seat's strike, then the second's. Counter damage
// lands on the striker.
func (Duel) Resolve(m *Match, moves []Move, src rng.Source) (RoundLog, *Result) {
	log := RoundLog{Round: m.Round + 1, Actions: make([]Action, 2)}

	var dmg [2]int

	for a := range 2 {
		d := 1 - a
		log.Actions[a].UserID = m.Participants[a].UserID
		log.Actions[a].Move = moves[a]

		hit, counter, notes := duelStrikeOnce(moves[a], moves[d], src)
		dmg[d] += hit
		dmg[a] += counter

		log.Actions[a].Dealt += hit
		log.Actions[a].Notes = append(log.Actions[a].Notes, notes...)
		log.Actions[d].Dealt += counter
	}

	for i := range 2 {
		m.Participants[i].HP = max(0, m.Participants[i].HP-dmg[i])
		log.Actions[i].Received = dmg[i]
	}

	return log, finishOne(m)
}

func duelStrikeOnce(attack, defense Move, src rng.Source) (hit, counter int, notes []string) {
	s, ok := duelStrikes[attack]
	if !ok {
		return 0, 0, nil
	}

	if s.miss > 0 && rng.Chance(src, s.miss) {
		return 0, 0, []string{"miss"}
	}

	if defense == MoveDodge && rng.Chance(src, dodgeChance) {
		if rng.Chance(src, dodgeCounter) {
			return 0, dodgeCounterDamage.roll(src), []string{"dodged", "countered"}
		}

		return 0, 0, []string{"dodged"}
	}

	hit = s.damage.roll(src)

	if rng.Chance(src, s.crit) {
		hit = scale(hit, s.critMult)
		notes = append(notes, "critical")
	}

	if defense == MoveDefend {
		hit = scale(hit, 1-defendReduction)
		notes = append(notes, "blocked")

		if rng.Chance(src, defendCounter) {
			counter = defendCounterDamage.roll(src)
			notes = append(notes, "countered")
		}
	}

	return hit, counter, notes
}

func scale(v int, f float64) int {
	return int(math.Floor(float64(v) * f))
}
