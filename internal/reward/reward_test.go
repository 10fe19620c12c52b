package reward

import (
	"errors"
	"math"
	"testing"

	"github.com/EmeraldIsleCasino/wagercore/internal/rng"
)

func TestPayout_FloorsInDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stake int64
		mult  float64
		want  int64
	}{
		{name: "scenario_three_steps", stake: 100, mult: 2.00, want: 200},
		{name: "binary_rounding_trap", stake: 100, mult: 2.3, want: 230},
		{name: "floors_fraction", stake: 150, mult: 1.24, want: 186},
		{name: "tiny_fraction_floors", stake: 333, mult: 1.03, want: 342},
		{name: "zero_multiplier", stake: 500, mult: 0, want: 0},
		{name: "zero_stake", stake: 0, mult: 5, want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Payout(tt.stake, tt.mult)
			if got != tt.want {
				t.Fatalf("Payout(%d, %v): want %d, got %d", tt.stake, tt.mult, tt.want, got)
			}
		})
	}
}

func TestCurve_ValidateAndAt(t *testing.T) {
	t.Parallel()

	c := Curve{1.24, 1.56, 2.00}

	err := c.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	steps := []struct {
		k    int
		want float64
	}{
		{0, 1}, {1, 1.24}, {2, 1.56}, {3, 2.00},
	}
	for _, s := range steps {
		got, err := c.At(s.k)
		if err != nil {
			t.Fatalf("At(%d): %v", s.k, err)
		}

		if got != s.want {
			t.Fatalf("At(%d): want %v, got %v", s.k, s.want, got)
		}
	}

	_, err = c.At(4)
	if !errors.Is(err, ErrRngConfiguration) {
		t.Fatalf("At past end: want ErrRngConfiguration, got %v", err)
	}

	bad := []Curve{nil, {0.9, 1.2}, {1.2, 1.2}, {1.5, 1.3}}
	for _, b := range bad {
		if err := b.Validate(); !errors.Is(err, ErrRngConfiguration) {
			t.Fatalf("curve %v: want ErrRngConfiguration, got %v", b, err)
		}
	}
}

func TestPickWeighted_SkipsZeroWeights(t *testing.T) {
	t.Parallel()

	src := rng.NewSeeded(1)

	for range 10_000 {
		idx, ok := PickWeighted(src, []int64{0, 5, 0, -3})
		if !ok || idx != 1 {
			t.Fatalf("want index 1, got %d ok=%v", idx, ok)
		}
	}

	_, ok := PickWeighted(src, []int64{0, 0})
	if ok {
		t.Fatalf("all-zero weights must report false")
	}
}

func TestRollFixedOdds_ExpectationConverges(t *testing.T) {
	t.Parallel()

	const (
		p      = 0.45
		m      = 2.0
		rounds = 200_000
	)

	e, err := NewEngine(rng.NewSeeded(2024), []FixedOddsTable{{
		ID: "coin",
		Outcomes: []Outcome{
			{Name: "win", Multiplier: m, Weight: 45},
			{Name: "lose", Multiplier: 0, Weight: 55},
		},
	}}, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	var sum float64

	for range rounds {
		o, err := e.RollFixedOdds("coin")
		if err != nil {
			t.Fatalf("roll: %v", err)
		}

		sum += o.Multiplier
	}

	mean := sum / rounds
	if math.Abs(mean-p*m) > 0.02 {
		t.Fatalf("mean payout %.4f want ~%.2f", mean, p*m)
	}
}

func TestRollFixedOdds_UnknownTable(t *testing.T) {
	t.Parallel()

	e, err := NewEngine(rng.NewSeeded(1), nil, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	_, err = e.RollFixedOdds("missing")
	if !errors.Is(err, ErrRngConfiguration) {
		t.Fatalf("want ErrRngConfiguration, got %v", err)
	}
}

func TestNewEngine_RejectsBadTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		table FixedOddsTable
	}{
		{name: "empty", table: FixedOddsTable{ID: "a"}},
		{name: "zero_weight", table: FixedOddsTable{ID: "b", Outcomes: []Outcome{{Name: "x", Multiplier: 1}}}},
		{name: "negative_multiplier", table: FixedOddsTable{ID: "c", Outcomes: []Outcome{{Name: "x", Multiplier: -1, Weight: 1}}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewEngine(rng.NewSeeded(1), []FixedOddsTable{tt.table}, nil)
			if !errors.Is(err, ErrRngConfiguration) {
				t.Fatalf("want ErrRngConfiguration, got %v", err)
			}
		})
	}
}

func TestLookup_Category(t *testing.T) {
	t.Parallel()

	e, err := NewEngine(rng.NewSeeded(1), []FixedOddsTable{{
		ID:       "duck_race",
		Outcomes: []Outcome{{Name: "Quacky", Multiplier: 2, Weight: 1}, {Name: "Bubbles", Multiplier: 8, Weight: 1}},
	}}, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	o, err := e.Lookup("duck_race", "Bubbles")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	if o.Multiplier != 8 {
		t.Fatalf("want 8, got %v", o.Multiplier)
	}

	_, err = e.Lookup("duck_race", "Nobody")
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("want ErrUnknownCategory, got %v", err)
	}
}

func TestPool_RangesContiguous(t *testing.T) {
	t.Parallel()

	var p Pool

	for _, amt := range []int64{100, 200, 300} {
		_, err := p.Add(uint64(amt), amt)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if p.TotalStake != 600 {
		t.Fatalf("total: want 600, got %d", p.TotalStake)
	}

	var next int64

	for _, e := range p.Entries {
		if e.TicketFrom != next {
			t.Fatalf("gap before entry %+v: want from %d", e, next)
		}

		if e.TicketTo-e.TicketFrom+1 != e.Amount {
			t.Fatalf("range size mismatch for %+v", e)
		}

		next = e.TicketTo + 1
	}

	if next != p.TotalStake {
		t.Fatalf("ranges end at %d, want %d", next, p.TotalStake)
	}

	_, err := p.Add(1, 0)
	if err == nil {
		t.Fatalf("zero amount must be rejected")
	}
}

func TestRollTicketDraw_Fairness(t *testing.T) {
	t.Parallel()

	e, err := NewEngine(rng.NewSeeded(77), nil, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	var p Pool

	_, _ = p.Add(1, 100)
	_, _ = p.Add(2, 200)
	_, _ = p.Add(3, 300)

	const rounds = 100_000

	wins := map[uint64]int{}

	for range rounds {
		w, ticket, err := e.RollTicketDraw(&p)
		if err != nil {
			t.Fatalf("draw: %v", err)
		}

		if ticket < 0 || ticket >= p.TotalStake {
			t.Fatalf("ticket %d outside [0,%d)", ticket, p.TotalStake)
		}

		wins[w.UserID]++
	}

	want := map[uint64]float64{1: 1.0 / 6, 2: 2.0 / 6, 3: 0.5}
	for uid, f := range want {
		got := float64(wins[uid]) / rounds
		if math.Abs(got-f) > 0.01 {
			t.Fatalf("user %d win rate %.4f want ~%.4f", uid, got, f)
		}
	}
}

func TestRollTicketDraw_EmptyPool(t *testing.T) {
	t.Parallel()

	e, _ := NewEngine(rng.NewSeeded(1), nil, nil)

	_, _, err := e.RollTicketDraw(&Pool{})
	if !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("want ErrEmptyPool, got %v", err)
	}
}

func TestRollWeightedDrop_FirstTriggeredTierWins(t *testing.T) {
	t.Parallel()

	tiers := []DropTier{
		{Name: "common", Chance: 0.10, Items: []DropItem{{ID: "c1", Weight: 1}}},
		{Name: "rare", Chance: 0.05, Items: []DropItem{{ID: "r1", Weight: 1}}},
		{Name: "empty", Chance: 1, Items: nil},
	}

	tests := []struct {
		name     string
		seq      []float64
		wantOK   bool
		wantTier string
	}{
		{name: "common_hits", seq: []float64{0.05, 0.0}, wantOK: true, wantTier: "common"},
		{name: "common_misses_rare_hits", seq: []float64{0.5, 0.01, 0.0}, wantOK: true, wantTier: "rare"},
		{name: "falls_to_empty_tier_no_drop", seq: []float64{0.5, 0.5, 0.0}, wantOK: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, err := NewEngine(rng.NewSequence(tt.seq...), nil, tiers)
			if err != nil {
				t.Fatalf("new engine: %v", err)
			}

			d, ok := e.RollWeightedDrop(DropContext{UserID: 9, Source: "mines"})
			if ok != tt.wantOK {
				t.Fatalf("ok: want %v, got %v (%+v)", tt.wantOK, ok, d)
			}

			if ok && d.Tier != tt.wantTier {
				t.Fatalf("tier: want %s, got %s", tt.wantTier, d.Tier)
			}
		})
	}
}

func TestRollWeightedDrop_OverallRate(t *testing.T) {
	t.Parallel()

	tiers := []DropTier{
		{Name: "common", Chance: 0.10, Items: []DropItem{{ID: "c1", Weight: 3}, {ID: "c2", Weight: 1}}},
		{Name: "rare", Chance: 0.05, Items: []DropItem{{ID: "r1", Weight: 1}}},
	}

	e, err := NewEngine(rng.NewSeeded(5), nil, tiers)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	const rounds = 200_000

	drops := 0

	for range rounds {
		if _, ok := e.RollWeightedDrop(DropContext{}); ok {
			drops++
		}
	}

	// independent checks: 0.10 + 0.90*0.05
	want := 0.145

	got := float64(drops) / rounds
	if math.Abs(got-want) > 0.005 {
		t.Fatalf("drop rate %.4f want ~%.3f", got, want)
	}
}
