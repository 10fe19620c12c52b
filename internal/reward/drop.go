package reward

import (
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/rng"
)

// DropItem is a concrete reward inside a tier.
type DropItem struct {
	ID     string `yaml:"id" json:"id"`
	Weight int64  `yaml:"weight" json:"weight"`
}

// DropTier is checked with its own trigger probability. Tiers are evaluated
// in configured order and the first that triggers wins.
type DropTier struct {
	Name   string     `yaml:"name" json:"name"`
	Chance float64    `yaml:"chance" json:"chance"`
	Items  []DropItem `yaml:"items" json:"items"`
}

// DropContext describes what earned the roll.
type DropContext struct {
	UserID uint64
	Source string
}

// Drop is the result of a successful drop roll.
type Drop struct {
	UserID uint64 `json:"userId"`
	Source string `json:"source"`
	Tier   string `json:"tier"`
	ItemID string `json:"itemId"`
}

func validateDrops(tiers []DropTier) error {
	for _, t := range tiers {
		if t.Chance < 0 || t.Chance > 1 {
			return fmt.Errorf("tier %q chance %v outside [0,1]: %w", t.Name, t.Chance, ErrRngConfiguration)
		}

		for _, it := range t.Items {
			if it.Weight < 0 {
				return fmt.Errorf("tier %q item %q negative weight: %w", t.Name, it.ID, ErrRngConfiguration)
			}
		}
	}

	return nil
}

// RollWeightedDrop runs the two-stage drop. The boolean is false when no tier
// triggered or the triggered tier has nothing to give; that is not an error.
func (e *Engine) RollWeightedDrop(dc DropContext) (Drop, bool) {
	return rollDrop(e.src, e.drops, dc)
}

func rollDrop(src rng.Source, tiers []DropTier, dc DropContext) (Drop, bool) {
	for _, tier := range tiers {
		if !rng.Chance(src, tier.Chance) {
			continue
		}

		weights := make([]int64, len(tier.Items))
		for i, it := range tier.Items {
			weights[i] = it.Weight
		}

		idx, ok := PickWeighted(src, weights)
		if !ok {
			return Drop{}, false
		}

		return Drop{
			UserID: dc.UserID,
			Source: dc.Source,
			Tier:   tier.Name,
			ItemID: tier.Items[idx].ID,
		}, true
	}

	return Drop{}, false
}
