package reward

import (
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/rng"
)

// Outcome is one category of a fixed-odds table.
type Outcome struct {
	Name       string  `yaml:"name" json:"name"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	Weight     int64   `yaml:"weight" json:"weight"`
}

// FixedOddsTable is a weighted list of outcomes, each paying a fixed multiplier.
type FixedOddsTable struct {
	ID       string
	Outcomes []Outcome
}

// Validate rejects empty tables, negative multipliers and tables without a
// positive weight.
func (t FixedOddsTable) Validate() error {
	if len(t.Outcomes) == 0 {
		return fmt.Errorf("table %q has no outcomes: %w", t.ID, ErrRngConfiguration)
	}

	var total int64

	for _, o := range t.Outcomes {
		if o.Multiplier < 0 {
			return fmt.Errorf("table %q outcome %q has negative multiplier: %w", t.ID, o.Name, ErrRngConfiguration)
		}

		if o.Weight < 0 {
			return fmt.Errorf("table %q outcome %q has negative weight: %w", t.ID, o.Name, ErrRngConfiguration)
		}

		total += o.Weight
	}

	if total == 0 {
		return fmt.Errorf("table %q has zero total weight: %w", t.ID, ErrRngConfiguration)
	}

	return nil
}

// ExpectedMultiplier is the weight-averaged multiplier, i.e. the return to player.
func (t FixedOddsTable) ExpectedMultiplier() float64 {
	var total int64

	var sum float64

	for _, o := range t.Outcomes {
		if o.Weight <= 0 {
			continue
		}

		total += o.Weight
		sum += float64(o.Weight) * o.Multiplier
	}

	if total == 0 {
		return 0
	}

	return sum / float64(total)
}

// Engine rolls fixed-odds tables, ticket draws and weighted drops.
type Engine struct {
	src    rng.Source
	tables map[string]FixedOddsTable
	drops  []DropTier
}

// NewEngine validates tables and drop tiers and returns an Engine.
func NewEngine(src rng.Source, tables []FixedOddsTable, drops []DropTier) (*Engine, error) {
	e := &Engine{
		src:    src,
		tables: make(map[string]FixedOddsTable, len(tables)),
		drops:  drops,
	}

	for _, t := range tables {
		err := t.Validate()
		if err != nil {
			return nil, fmt.Errorf("validate table: %w", err)
		}

		e.tables[t.ID] = t
	}

	err := validateDrops(drops)
	if err != nil {
		return nil, fmt.Errorf("validate drops: %w", err)
	}

	return e, nil
}

// Source exposes the engine's randomness to callers that roll alongside it.
func (e *Engine) Source() rng.Source { return e.src }

// Table returns a registered table.
func (e *Engine) Table(tableID string) (FixedOddsTable, error) {
	t, ok := e.tables[tableID]
	if !ok {
		return FixedOddsTable{}, fmt.Errorf("unknown table %q: %w", tableID, ErrRngConfiguration)
	}

	return t, nil
}

// RollFixedOdds picks an outcome of tableID by weight.
func (e *Engine) RollFixedOdds(tableID string) (Outcome, error) {
	t, err := e.Table(tableID)
	if err != nil {
		return Outcome{}, err
	}

	weights := make([]int64, len(t.Outcomes))
	for i, o := range t.Outcomes {
		weights[i] = o.Weight
	}

	idx, ok := PickWeighted(e.src, weights)
	if !ok {
		return Outcome{}, fmt.Errorf("table %q: %w", tableID, ErrRngConfiguration)
	}

	return t.Outcomes[idx], nil
}

// Lookup returns the multiplier of a named category without sampling.
func (e *Engine) Lookup(tableID, category string) (Outcome, error) {
	t, err := e.Table(tableID)
	if err != nil {
		return Outcome{}, err
	}

	for _, o := range t.Outcomes {
		if o.Name == category {
			return o, nil
		}
	}

	return Outcome{}, fmt.Errorf("table %q category %q: %w", tableID, category, ErrUnknownCategory)
}
