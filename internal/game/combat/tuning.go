package combat

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cory-johannsen/shinobi/internal/game/stats"
)

// TiePolicy decides the winner when the turn cap is reached with both sides standing.
type TiePolicy string

const (
	// TieHealthFraction awards the win to the side with the higher current/max
	// health fraction; an exact tie is a draw.
	TieHealthFraction TiePolicy = "health_fraction"
	// TieDraw always ends a capped engagement in a draw.
	TieDraw TiePolicy = "draw"
)

// CategoryTuning holds the per-category damage coefficients.
type CategoryTuning struct {
	AttackCoefficient float64 `mapstructure:"attack_coefficient"`
	DefenseReduction  float64 `mapstructure:"defense_reduction"`
}

// Tuning holds every balance constant the engine uses.
type Tuning struct {
	Pools    stats.Pools    `mapstructure:"pools"`
	Physical CategoryTuning `mapstructure:"physical"`
	Energy   CategoryTuning `mapstructure:"energy"`
	Illusion CategoryTuning `mapstructure:"illusion"`
	// SealBonus scales the attacker's seal skill into energy attacks.
	SealBonus              float64   `mapstructure:"seal_bonus"`
	MinDamagePercent       float64   `mapstructure:"min_damage_percent"`
	MaxDamagePercentPerHit float64   `mapstructure:"max_damage_percent_per_hit"`
	BossDampener           float64   `mapstructure:"boss_dampener"`
	MaxTurns               int       `mapstructure:"max_turns"`
	TiePolicy              TiePolicy `mapstructure:"tie_policy"`
}

// DefaultTuning returns the standard balance constants.
func DefaultTuning() Tuning {
	return Tuning{
		Pools:                  stats.DefaultPools(),
		Physical:               CategoryTuning{AttackCoefficient: 2.0, DefenseReduction: 0.5},
		Energy:                 CategoryTuning{AttackCoefficient: 2.0, DefenseReduction: 0.6},
		Illusion:               CategoryTuning{AttackCoefficient: 1.8, DefenseReduction: 0.3},
		SealBonus:              0.5,
		MinDamagePercent:       0.02,
		MaxDamagePercentPerHit: 0.35,
		BossDampener:           0.6,
		MaxTurns:               100,
		TiePolicy:              TieHealthFraction,
	}
}

// For returns the coefficients of category cat.
func (t Tuning) For(cat stats.Category) CategoryTuning {
	switch cat {
	case stats.CategoryEnergy:
		return t.Energy
	case stats.CategoryIllusion:
		return t.Illusion
	default:
		return t.Physical
	}
}

// Bounds returns the per-hit damage floor and ceiling for a defender with maxHealth.
// The floor is never below 1 so every hit makes progress; if rounding pushes the
// ceiling below the floor, the ceiling wins.
//
// Precondition: maxHealth >= 0.
// Postcondition: lo <= hi <= maxHealth × MaxDamagePercentPerHit.
func (t Tuning) Bounds(maxHealth int) (lo, hi int) {
	hi = int(math.Floor(float64(maxHealth) * t.MaxDamagePercentPerHit))
	lo = int(math.Ceil(float64(maxHealth) * t.MinDamagePercent))
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		lo = hi
	}
	return lo, hi
}

// Validate checks all tuning invariants.
//
// Postcondition: Returns nil if t is usable, or an error describing every violation.
func (t Tuning) Validate() error {
	var errs []string
	if t.Pools.HealthBase < 1 {
		errs = append(errs, fmt.Sprintf("pools.health_base must be >= 1, got %d", t.Pools.HealthBase))
	}
	if t.Pools.HealthPerVitality < 0 || t.Pools.ResourceBase < 0 || t.Pools.ResourcePerIntelligence < 0 {
		errs = append(errs, "pools coefficients must not be negative")
	}
	for _, cat := range stats.Categories {
		ct := t.For(cat)
		if ct.AttackCoefficient < 0 || ct.DefenseReduction < 0 {
			errs = append(errs, fmt.Sprintf("%s coefficients must not be negative", cat))
		}
	}
	if t.SealBonus < 0 {
		errs = append(errs, "seal_bonus must not be negative")
	}
	if t.MinDamagePercent < 0 || t.MinDamagePercent > 1 {
		errs = append(errs, fmt.Sprintf("min_damage_percent must be in [0, 1], got %g", t.MinDamagePercent))
	}
	if t.MaxDamagePercentPerHit <= 0 || t.MaxDamagePercentPerHit > 1 {
		errs = append(errs, fmt.Sprintf("max_damage_percent_per_hit must be in (0, 1], got %g", t.MaxDamagePercentPerHit))
	}
	if t.MinDamagePercent > t.MaxDamagePercentPerHit {
		errs = append(errs, "min_damage_percent must not exceed max_damage_percent_per_hit")
	}
	if t.BossDampener <= 0 || t.BossDampener > 1 {
		errs = append(errs, fmt.Sprintf("boss_dampener must be in (0, 1], got %g", t.BossDampener))
	}
	if t.MaxTurns < 1 {
		errs = append(errs, fmt.Sprintf("max_turns must be >= 1, got %d", t.MaxTurns))
	}
	switch t.TiePolicy {
	case TieHealthFraction, TieDraw:
	default:
		errs = append(errs, fmt.Sprintf("tie_policy must be one of [health_fraction, draw], got %q", t.TiePolicy))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
