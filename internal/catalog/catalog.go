// Package catalog loads the static odds, curves and limits that drive every
// game. The embedded default.yaml is always loaded first; an optional file
// is decoded on top of it.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/reward"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	ErrStakeOutOfRange  = errors.New("stake out of range")
	ErrUnknownKind      = errors.New("unknown game kind")
	ErrInvalidParameter = errors.New("invalid game parameter")
)

// Limit bounds the stake of one game kind.
type Limit struct {
	Min  int64 `yaml:"min" json:"min"`
	Max  int64 `yaml:"max" json:"max"`
	Step int64 `yaml:"step" json:"step"`
}

// Check validates stake against the limit.
func (l Limit) Check(stake int64) error {
	if stake < l.Min || stake > l.Max {
		return fmt.Errorf("stake %d outside [%d,%d]: %w", stake, l.Min, l.Max, ErrStakeOutOfRange)
	}

	if l.Step > 0 && stake%l.Step != 0 {
		return fmt.Errorf("stake %d not a multiple of %d: %w", stake, l.Step, ErrStakeOutOfRange)
	}

	return nil
}

type GridConfig struct {
	Cells          int               `yaml:"cells"`
	MinHazards     int               `yaml:"min_hazards"`
	MaxHazards     int               `yaml:"max_hazards"`
	DefaultHazards int               `yaml:"default_hazards"`
	HouseEdge      float64           `yaml:"house_edge"`
	Curves         map[int][]float64 `yaml:"curves"`
}

// Curve returns the multiplier curve for the given hazard count. An explicit
// override wins; otherwise the fair-odds curve is derived from the board
// size and trimmed by the house edge.
func (g GridConfig) Curve(hazards int) (reward.Curve, error) {
	if hazards < g.MinHazards || hazards > g.MaxHazards || hazards >= g.Cells {
		return nil, fmt.Errorf("hazards %d outside [%d,%d]: %w", hazards, g.MinHazards, g.MaxHazards, ErrInvalidParameter)
	}

	if c, ok := g.Curves[hazards]; ok {
		return reward.Curve(c), nil
	}

	safe := g.Cells - hazards
	curve := make(reward.Curve, safe)

	// odds of surviving k picks: prod_{i<k} (safe-i)/(cells-i)
	fair := 1.0
	for k := 1; k <= safe; k++ {
		fair *= float64(g.Cells-(k-1)) / float64(safe-(k-1))
		curve[k-1] = reward.Round2((1 - g.HouseEdge) * fair)
	}

	return curve, nil
}

type Difficulty struct {
	Columns int     `yaml:"columns" json:"columns"`
	Hazards int     `yaml:"hazards" json:"hazards"`
	Base    float64 `yaml:"base" json:"base"`
}

type ClimbConfig struct {
	Floors            int                   `yaml:"floors"`
	DefaultDifficulty string                `yaml:"default_difficulty"`
	Difficulties      map[string]Difficulty `yaml:"difficulties"`
}

// Difficulty resolves a named difficulty, falling back to the default for "".
func (c ClimbConfig) Difficulty(name string) (Difficulty, string, error) {
	if name == "" {
		name = c.DefaultDifficulty
	}

	d, ok := c.Difficulties[name]
	if !ok {
		return Difficulty{}, "", fmt.Errorf("difficulty %q: %w", name, ErrInvalidParameter)
	}

	return d, name, nil
}

// Curve returns base^k rounded to two decimals for k = 1..Floors.
func (c ClimbConfig) Curve(d Difficulty) reward.Curve {
	curve := make(reward.Curve, c.Floors)
	for k := 1; k <= c.Floors; k++ {
		curve[k-1] = reward.Round2(math.Pow(d.Base, float64(k)))
	}

	return curve
}

type RaceEvent struct {
	Name   string  `yaml:"name" json:"name"`
	Factor float64 `yaml:"factor" json:"factor"`
	Chance float64 `yaml:"chance" json:"chance"`
}

type RaceConfig struct {
	HouseEdge float64       `yaml:"house_edge"`
	Ceiling   float64       `yaml:"ceiling"`
	Increment float64       `yaml:"increment"`
	Tick      time.Duration `yaml:"tick"`
	Events    []RaceEvent   `yaml:"events"`
}

type Room struct {
	Min int64 `yaml:"min" json:"min"`
	Max int64 `yaml:"max" json:"max"`
}

type JackpotConfig struct {
	Rooms map[string]Room `yaml:"rooms"`
}

type DuckRaceConfig struct {
	Track          int     `yaml:"track"`
	ObstacleChance float64 `yaml:"obstacle_chance"`
}

type HeistRole struct {
	Name  string  `yaml:"name" json:"name"`
	Bonus float64 `yaml:"bonus" json:"bonus"`
	Share float64 `yaml:"share" json:"share"`
}

type HeistEvent struct {
	Name           string  `yaml:"name" json:"name"`
	Chance         float64 `yaml:"chance" json:"chance"`
	SuccessDelta   float64 `yaml:"success_delta" json:"successDelta"`
	LootMultiplier float64 `yaml:"loot_multiplier" json:"lootMultiplier"`
}

type HeistConfig struct {
	BaseSuccess float64      `yaml:"base_success"`
	MinSuccess  float64      `yaml:"min_success"`
	MaxSuccess  float64      `yaml:"max_success"`
	LootFactor  float64      `yaml:"loot_factor"`
	MinCrew     int          `yaml:"min_crew"`
	Roles       []HeistRole  `yaml:"roles"`
	Events      []HeistEvent `yaml:"events"`
}

// Role looks up a role by name.
func (h HeistConfig) Role(name string) (HeistRole, bool) {
	for _, r := range h.Roles {
		if r.Name == name {
			return r, true
		}
	}

	return HeistRole{}, false
}

// Catalog is the full static configuration.
type Catalog struct {
	Limits    map[string]Limit            `yaml:"limits"`
	Grid      GridConfig                  `yaml:"grid"`
	Climb     ClimbConfig                 `yaml:"climb"`
	Race      RaceConfig                  `yaml:"race"`
	FixedOdds map[string][]reward.Outcome `yaml:"fixed_odds"`
	Drops     []reward.DropTier           `yaml:"drops"`
	Jackpot   JackpotConfig               `yaml:"jackpot"`
	DuckRace  DuckRaceConfig              `yaml:"duck_race"`
	Heist     HeistConfig                 `yaml:"heist"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	c := new(Catalog)

	err := decodeInto(c, defaultYAML)
	if err != nil {
		return nil, fmt.Errorf("decode default catalog: %w", err)
	}

	err = c.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate default catalog: %w", err)
	}

	return c, nil
}

// Load returns the embedded catalog overlaid with the file at path.
// An empty path yields the default.
func Load(path string) (*Catalog, error) {
	c := new(Catalog)

	err := decodeInto(c, defaultYAML)
	if err != nil {
		return nil, fmt.Errorf("decode default catalog: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}

		err = decodeInto(c, raw)
		if err != nil {
			return nil, fmt.Errorf("decode catalog %s: %w", path, err)
		}
	}

	err = c.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	return c, nil
}

func decodeInto(c *Catalog, raw []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	return dec.Decode(c)
}

// Limit returns the stake limit for a game kind.
func (c *Catalog) Limit(kind string) (Limit, error) {
	l, ok := c.Limits[kind]
	if !ok {
		return Limit{}, fmt.Errorf("limits for %q: %w", kind, ErrUnknownKind)
	}

	return l, nil
}

// Tables converts the fixed-odds section into reward tables, ordered by ID.
func (c *Catalog) Tables() []reward.FixedOddsTable {
	ids := make([]string, 0, len(c.FixedOdds))
	for id := range c.FixedOdds {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	tables := make([]reward.FixedOddsTable, 0, len(ids))
	for _, id := range ids {
		tables = append(tables, reward.FixedOddsTable{ID: id, Outcomes: c.FixedOdds[id]})
	}

	return tables
}

// Validate checks every curve, table and probability.
//
//nolint:cyclop
func (c *Catalog) Validate() error {
	for kind, l := range c.Limits {
		if l.Min <= 0 || l.Max < l.Min {
			return fmt.Errorf("limits %q [%d,%d]: %w", kind, l.Min, l.Max, reward.ErrRngConfiguration)
		}
	}

	if c.Grid.Cells <= 1 || c.Grid.MinHazards < 1 || c.Grid.MaxHazards >= c.Grid.Cells {
		return fmt.Errorf("grid bounds: %w", reward.ErrRngConfiguration)
	}

	for h := c.Grid.MinHazards; h <= c.Grid.MaxHazards; h++ {
		curve, err := c.Grid.Curve(h)
		if err != nil {
			return fmt.Errorf("grid curve %d: %w", h, err)
		}

		if len(curve) != c.Grid.Cells-h {
			return fmt.Errorf("grid curve %d has %d steps, want %d: %w", h, len(curve), c.Grid.Cells-h, reward.ErrRngConfiguration)
		}

		err = curve.Validate()
		if err != nil {
			return fmt.Errorf("grid curve %d: %w", h, err)
		}
	}

	if c.Climb.Floors <= 0 {
		return fmt.Errorf("climb floors: %w", reward.ErrRngConfiguration)
	}

	for name, d := range c.Climb.Difficulties {
		if d.Columns < 2 || d.Hazards < 1 || d.Hazards >= d.Columns {
			return fmt.Errorf("climb difficulty %q layout: %w", name, reward.ErrRngConfiguration)
		}

		err := c.Climb.Curve(d).Validate()
		if err != nil {
			return fmt.Errorf("climb difficulty %q: %w", name, err)
		}
	}

	if c.Race.HouseEdge < 0 || c.Race.HouseEdge >= 1 || c.Race.Ceiling < 1 || c.Race.Increment <= 0 || c.Race.Tick <= 0 {
		return fmt.Errorf("race parameters: %w", reward.ErrRngConfiguration)
	}

	for _, ev := range c.Race.Events {
		if ev.Chance < 0 || ev.Chance > 1 || ev.Factor <= 0 {
			return fmt.Errorf("race event %q: %w", ev.Name, reward.ErrRngConfiguration)
		}
	}

	for _, t := range c.Tables() {
		err := t.Validate()
		if err != nil {
			return fmt.Errorf("fixed odds: %w", err)
		}
	}

	for name, r := range c.Jackpot.Rooms {
		if r.Min <= 0 || r.Max < r.Min {
			return fmt.Errorf("jackpot room %q: %w", name, reward.ErrRngConfiguration)
		}
	}

	for _, t := range c.Drops {
		if t.Chance < 0 || t.Chance > 1 {
			return fmt.Errorf("drop tier %q: %w", t.Name, reward.ErrRngConfiguration)
		}
	}

	h := c.Heist
	if h.MinSuccess < 0 || h.MaxSuccess > 1 || h.MinSuccess > h.MaxSuccess || h.LootFactor <= 0 || h.MinCrew < 2 || len(h.Roles) < h.MinCrew {
		return fmt.Errorf("heist parameters: %w", reward.ErrRngConfiguration)
	}

	for _, r := range h.Roles {
		if r.Share <= 0 {
			return fmt.Errorf("heist role %q share: %w", r.Name, reward.ErrRngConfiguration)
		}
	}

	for _, ev := range h.Events {
		if ev.Chance < 0 || ev.Chance > 1 || ev.LootMultiplier < 0 {
			return fmt.Errorf("heist event %q: %w", ev.Name, reward.ErrRngConfiguration)
		}
	}

	return nil
}
