package match

import (
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/rng"
)

const (
	MoveJab      Move = "jab"
	MoveHook     Move = "hook"
	MoveUppercut Move = "uppercut"
	MoveBlock    Move = "block"
	// MoveDodge is shared with the duel.
)

type punch struct {
	damage span
	cost   int
	ko     float64
}

var punches = map[Move]punch{
	MoveJab:      {damage: span{8, 15}, cost: 10},
	MoveHook:     {damage: span{15, 25}, cost: 20, ko: 0.10},
	MoveUppercut: {damage: span{20, 35}, cost: 30, ko: 0.20},
}

const (
	boxingHP        = 100
	boxingStamina   = 100
	tiredStamina    = 20
	koBonus         = 30
	staminaPerRound = 5

	blockReduction = 0.7
	blockRecovery  = 15
	blockCounter   = 0.20

	slipChance  = 0.50
	slipCost    = 15
	slipCounter = 0.35
)

var (
	blockCounterDamage = span{3, 10}
	slipCounterDamage  = span{5, 14}
)

// Boxing adds stamina to the duel: punches cost it, blocking recovers it and
// a tired boxer hits for half.
type Boxing struct{}

func (Boxing) Kind() Kind { return KindBoxing }
func (Boxing) Crew() (minimum, maximum int) { return 2, 2 }

func (Boxing) Seat(_ *Match, p *Participant, _ JoinOptions) error {
	p.HP = boxingHP
	p.Stamina = boxingStamina

	return nil
}

func moveCost(mv Move) int {
	if mv == MoveDodge {
		return slipCost
	}

	return punches[mv].cost
}

// ValidateMove rejects unknown moves and anything but a jab or block the
// boxer lacks the stamina for.
func (Boxing) ValidateMove(m *Match, seat int, mv Move) error {
	switch mv {
	case MoveJab, MoveBlock:
		return nil
	case MoveHook, MoveUppercut, MoveDodge:
		if m.Participants[seat].Stamina < moveCost(mv) {
			return fmt.Errorf("%s needs %d stamina: %w", mv, moveCost(mv), ErrInvalidMove)
		}

		return nil
	default:
		return fmt.Errorf("boxing move %q: %w", mv, ErrInvalidMove)
	}
}

func (Boxing) Resolve(m *Match, moves []Move, src rng.Source) (RoundLog, *Result) {
	log := RoundLog{Round: m.Round + 1, Actions: make([]Action, 2)}

	for i := range 2 {
		p := &m.Participants[i]
		log.Actions[i].UserID = p.UserID
		log.Actions[i].Move = moves[i]

		if moves[i] == MoveBlock {
			p.Stamina = min(boxingStamina, p.Stamina+blockRecovery)
		} else {
			p.Stamina = max(0, p.Stamina-moveCost(moves[i]))
		}
	}

	var dmg [2]int

	for a := range 2 {
		d := 1 - a

		hit, counter, notes := throwPunch(moves[a], moves[d], m.Participants[a].Stamina, src)
		dmg[d] += hit
		dmg[a] += counter

		log.Actions[a].Dealt += hit
		log.Actions[a].Notes = append(log.Actions[a].Notes, notes...)
		log.Actions[d].Dealt += counter
	}

	for i := range 2 {
		p := &m.Participants[i]
		p.HP = max(0, p.HP-dmg[i])
		p.Stamina = min(boxingStamina, p.Stamina+staminaPerRound)
		log.Actions[i].Received = dmg[i]
	}

	return log, finishOne(m)
}

func throwPunch(attack, defense Move, stamina int, src rng.Source) (hit, counter int, notes []string) {
	p, ok := punches[attack]
	if !ok {
		return 0, 0, nil
	}

	factor := 1.0
	if stamina <= tiredStamina {
		factor = 0.5
		notes = append(notes, "tired")
	}

	hit = scale(p.damage.roll(src), factor)

	switch defense {
	case MoveDodge:
		if rng.Chance(src, slipChance) {
			hit = 0
			notes = append(notes, "dodged")

			if rng.Chance(src, slipCounter) {
				counter = slipCounterDamage.roll(src)
				notes = append(notes, "countered")
			}
		}
	case MoveBlock:
		hit = scale(hit, 1-blockReduction)
		notes = append(notes, "blocked")

		if rng.Chance(src, blockCounter) {
			counter = blockCounterDamage.roll(src)
			notes = append(notes, "countered")
		}
	}

	if hit > 0 && p.ko > 0 && rng.Chance(src, p.ko) {
		hit += koBonus
		notes = append(notes, "knockout power")
	}

	return hit, counter, notes
}
