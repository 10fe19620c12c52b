package match

import (
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/catalog"
	"github.com/EmeraldIsleCasino/wagercore/internal/reward"
	"github.com/EmeraldIsleCasino/wagercore/internal/rng"
	"github.com/shopspring/decimal"
)

const (
	MoveReady  Move = "ready"
	leaderRole      = "leader"
)

// Heist is the team game. The creator leads; others join into a free role.
// It resolves once, when every crew member has readied.
type Heist struct {
	cfg catalog.HeistConfig
}

func NewHeist(cfg catalog.HeistConfig) Heist { return Heist{cfg: cfg} }

func (Heist) Kind() Kind { return KindHeist }

func (h Heist) Crew() (minimum, maximum int) { return h.cfg.MinCrew, len(h.cfg.Roles) }

// Seat assigns a role. The first seat is always the leader; a joiner with
// no role takes the first vacant one.
func (h Heist) Seat(m *Match, p *Participant, opts JoinOptions) error {
	if len(m.Participants) == 0 {
		p.Role = leaderRole
		return nil
	}

	taken := make(map[string]bool, len(m.Participants))
	for _, q := range m.Participants {
		taken[q.Role] = true
	}

	if opts.Role == "" {
		for _, r := range h.cfg.Roles {
			if !taken[r.Name] {
				p.Role = r.Name
				return nil
			}
		}

		return fmt.Errorf("no vacant role: %w", ErrInvalidRole)
	}

	if _, ok := h.cfg.Role(opts.Role); !ok || opts.Role == leaderRole {
		return fmt.Errorf("role %q: %w", opts.Role, ErrInvalidRole)
	}

	if taken[opts.Role] {
		return fmt.Errorf("role %q taken: %w", opts.Role, ErrInvalidRole)
	}

	p.Role = opts.Role

	return nil
}

func (Heist) ValidateMove(_ *Match, _ int, mv Move) error {
	if mv != MoveReady {
		return fmt.Errorf("heist move %q: %w", mv, ErrInvalidMove)
	}

	return nil
}

func (h Heist) Resolve(m *Match, moves []Move, src rng.Source) (RoundLog, *Result) {
	chance := h.cfg.BaseSuccess
	for _, p := range m.Participants {
		r, _ := h.cfg.Role(p.Role)
		chance += r.Bonus
	}

	lootMult := 1.0

	var fired []string

	for _, ev := range h.cfg.Events {
		if !rng.Chance(src, ev.Chance) {
			continue
		}

		fired = append(fired, ev.Name)
		chance += ev.SuccessDelta

		if ev.LootMultiplier > 0 {
			lootMult *= ev.LootMultiplier
		}
	}

	chance = min(max(chance, h.cfg.MinSuccess), h.cfg.MaxSuccess)

	res := &Result{
		Outcome:       OutcomeFailure,
		SuccessChance: reward.Round2(chance),
		Events:        fired,
	}

	if src.Float64() < chance {
		res.Outcome = OutcomeSuccess
		res.Payouts = h.split(m, lootMult)
	}

	log := RoundLog{Round: m.Round + 1, Actions: make([]Action, len(m.Participants))}
	for i, p := range m.Participants {
		log.Actions[i] = Action{UserID: p.UserID, Move: moves[i], Notes: []string{p.Role}}
	}

	return log, res
}

// split shares floor(pot * loot_factor * lootMult) by role weight, each
// share floored.
func (h Heist) split(m *Match, lootMult float64) map[uint64]int64 {
	loot := decimal.NewFromInt(m.Pot()).
		Mul(decimal.NewFromFloat(h.cfg.LootFactor)).
		Mul(decimal.NewFromFloat(lootMult)).
		Floor()

	weights := make([]decimal.Decimal, len(m.Participants))
	total := decimal.Zero

	for i, p := range m.Participants {
		r, _ := h.cfg.Role(p.Role)
		weights[i] = decimal.NewFromFloat(r.Share)
		total = total.Add(weights[i])
	}

	out := make(map[uint64]int64, len(m.Participants))
	for i, p := range m.Participants {
		out[p.UserID] = loot.Mul(weights[i]).Div(total).Floor().IntPart()
	}

	return out
}
