// Package combat implements the deterministic duel engine: stat aggregation,
// attack selection, damage resolution and the turn loop.
//
// The package performs no I/O and holds no shared mutable state; every Run
// operates on its own snapshots and may be invoked concurrently.
package combat

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cory-johannsen/shinobi/internal/game/equipment"
	"github.com/cory-johannsen/shinobi/internal/game/powerstate"
	"github.com/cory-johannsen/shinobi/internal/game/stats"
)

// Side identifies one party of an engagement.
type Side int

const (
	SideNone Side = iota
	SideAttacker
	SideDefender
)

// String returns a human-readable side label.
func (s Side) String() string {
	switch s {
	case SideAttacker:
		return "attacker"
	case SideDefender:
		return "defender"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "attacker":
		*s = SideAttacker
	case "defender":
		*s = SideDefender
	case "none", "":
		*s = SideNone
	default:
		return fmt.Errorf("unknown side %q", text)
	}
	return nil
}

// Mode selects standard or boss engagement rules.
type Mode int

const (
	ModeStandard Mode = iota
	// ModeBoss dampens every hit landed on the defender.
	ModeBoss
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeBoss {
		return "boss"
	}
	return "standard"
}

// ParseMode resolves "standard" or "boss". The empty string is standard.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "standard":
		return ModeStandard, nil
	case "boss":
		return ModeBoss, nil
	default:
		return ModeStandard, fmt.Errorf("unknown engagement mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Combatant is one side's battle-relevant snapshot for a single engagement.
// Nil maps and slices are treated as empty.
type Combatant struct {
	ID         string             `yaml:"id" json:"id"`
	Name       string             `yaml:"name" json:"name"`
	Base       stats.Block        `yaml:"base" json:"base"`
	Equipment  []equipment.Item   `yaml:"equipment" json:"equipment,omitempty"`
	Elements   map[string]int     `yaml:"elements" json:"elements,omitempty"`
	Techniques map[string]int     `yaml:"techniques" json:"techniques,omitempty"`
	Power      *powerstate.Active `yaml:"power" json:"power,omitempty"`
	// CurrentHealth carries health persisted from earlier engagements.
	// Nil means the combatant starts at full health.
	CurrentHealth *int `yaml:"current_health" json:"current_health,omitempty"`
}

// Validate rejects snapshots whose values exceed the accepted ranges: base
// attributes and item bonuses within ±stats.MaxAttribute, element and technique
// levels and the power tier within [0, stats.MaxLevel]. CurrentHealth is clamped
// by the engine.
//
// Postcondition: Returns nil or an error naming every offending value.
func (c *Combatant) Validate() error {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := c.Base.Validate(); err != nil {
		add(fmt.Errorf("base: %w", err))
	}
	for _, it := range c.Equipment {
		for _, a := range stats.All {
			if n, ok := it.Bonuses[a]; ok {
				add(stats.CheckAttribute(fmt.Sprintf("item %s %s bonus", it.ID, a), n))
			}
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.Elements)) {
		add(stats.CheckLevel("element "+id, c.Elements[id]))
	}
	for _, id := range slices.Sorted(maps.Keys(c.Techniques)) {
		add(stats.CheckLevel("technique "+id, c.Techniques[id]))
	}
	if c.Power != nil {
		add(stats.CheckLevel("power tier", c.Power.Tier))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// startingHealth returns the combatant's health at the start of an engagement.
//
// Postcondition: Returns a value in [0, maxHealth].
func (c *Combatant) startingHealth(maxHealth int) int {
	if c.CurrentHealth == nil {
		return maxHealth
	}
	return clampHealth(*c.CurrentHealth, maxHealth)
}

func clampHealth(hp, maxHealth int) int {
	switch {
	case hp < 0:
		return 0
	case hp > maxHealth:
		return maxHealth
	default:
		return hp
	}
}

// EffectiveStats is a combatant's attribute block after equipment, elemental
// and power-state adjustments, plus the derived pools.
type EffectiveStats struct {
	Stats       stats.Block `json:"stats"`
	MaxHealth   int         `json:"max_health"`
	MaxResource int         `json:"max_resource"`
	// PowerTier is the level of the power state in force, 0 when none applied.
	PowerTier int `json:"power_tier,omitempty"`
}
