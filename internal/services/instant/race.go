package instant

import (
	"fmt"

	"github.com/EmeraldIsleCasino/wagercore/internal/catalog"
	"github.com/EmeraldIsleCasino/wagercore/internal/reward"
	"github.com/EmeraldIsleCasino/wagercore/internal/rng"
)

type obstacleEffect int

const (
	effectNone obstacleEffect = iota
	effectBoost
	effectSlow
	effectShuffle
)

type obstacle struct {
	name   string
	effect obstacleEffect
	value  int
}

var obstacles = []obstacle{
	{name: "Tailwind", effect: effectBoost, value: 3},
	{name: "Whirlpool", effect: effectSlow, value: 2},
	{name: "Jumping Fish", effect: effectNone},
	{name: "Big Wave", effect: effectShuffle},
	{name: "Tangled Weed", effect: effectSlow, value: 1},
}

// maxTicks bounds a race whose ducks stall on obstacles forever.
const maxTicks = 1000

type RaceEvent struct {
	Tick     int    `json:"tick"`
	Duck     string `json:"duck"`
	Obstacle string `json:"obstacle"`
}

// Race is a finished simulation. Positions are the final track positions
// in the order of Ducks.
type Race struct {
	Ducks     []string    `json:"ducks"`
	Positions []int       `json:"positions"`
	Ticks     int         `json:"ticks"`
	Events    []RaceEvent `json:"events,omitempty"`
	Winner    string      `json:"winner"`
}

// runRace advances every duck 1-3 cells per tick until one reaches the
// finish. Ties go to the duck listed first.
func runRace(src rng.Source, ducks []string, cfg catalog.DuckRaceConfig) (Race, error) {
	if len(ducks) == 0 || cfg.Track <= 0 {
		return Race{}, fmt.Errorf("duck race with %d ducks on track %d: %w", len(ducks), cfg.Track, reward.ErrRngConfiguration)
	}

	r := Race{Ducks: ducks, Positions: make([]int, len(ducks))}

	for !r.finished(cfg.Track) {
		if r.Ticks >= maxTicks {
			return Race{}, fmt.Errorf("duck race did not finish in %d ticks: %w", maxTicks, reward.ErrRngConfiguration)
		}

		r.Ticks++

		for i := range r.Positions {
			move := rng.Between(src, 1, 3)

			if rng.Chance(src, cfg.ObstacleChance) {
				o := obstacles[src.IntN(len(obstacles))]
				r.Events = append(r.Events, RaceEvent{Tick: r.Ticks, Duck: ducks[i], Obstacle: o.name})

				switch o.effect {
				case effectBoost:
					move += o.value
				case effectSlow:
					move = max(0, move-o.value)
				case effectShuffle:
					move = src.IntN(5)
				}
			}

			r.Positions[i] = min(cfg.Track, r.Positions[i]+move)
		}
	}

	lead := 0
	for i, p := range r.Positions {
		if p > r.Positions[lead] {
			lead = i
		}
	}

	r.Winner = ducks[lead]

	return r, nil
}

func (r *Race) finished(track int) bool {
	for _, p := range r.Positions {
		if p >= track {
			return true
		}
	}

	return false
}
