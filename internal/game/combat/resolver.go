package combat

import (
	"math"

	"github.com/cory-johannsen/shinobi/internal/game/stats"
)

// Hit holds the outcome of one damage resolution.
type Hit struct {
	// Damage is the integer damage to subtract from the defender's health.
	Damage int
	// Raw is attack power × coefficient − defense, before clamping.
	Raw float64
	// Lower and Upper are the clamp bounds derived from the defender's max health.
	Lower int
	Upper int
	// Dampened is true when the boss dampener was applied.
	Dampened bool
}

// Options adjusts a single resolution.
type Options struct {
	Tuning Tuning
	// Boss applies Tuning.BossDampener after clamping.
	Boss bool
}

// AttackPower returns the offensive power of att for category cat.
// Energy attacks add seal × SealBonus.
func AttackPower(att stats.Block, cat stats.Category, t Tuning) float64 {
	power := float64(att.Get(cat.Attribute()))
	if cat == stats.CategoryEnergy {
		power += float64(att.Seal) * t.SealBonus
	}
	return power
}

// Resolve computes the damage att deals to def with an attack of category cat.
//
//	raw    = power × AttackCoefficient − def.vitality × DefenseReduction
//	damage = floor(clamp(raw, lo, hi)), lo/hi from Tuning.Bounds(def.MaxHealth)
//
// In boss mode the clamped damage is multiplied by BossDampener and floored,
// never dropping below 1.
//
// Postcondition: 0 <= Damage <= def.MaxHealth × MaxDamagePercentPerHit;
// without Boss, Damage >= def.MaxHealth × MinDamagePercent whenever the bounds allow it.
func Resolve(att, def EffectiveStats, cat stats.Category, opts Options) Hit {
	ct := opts.Tuning.For(cat)
	power := AttackPower(att.Stats, cat, opts.Tuning)
	defense := float64(def.Stats.Vitality) * ct.DefenseReduction
	raw := power*ct.AttackCoefficient - defense

	lo, hi := opts.Tuning.Bounds(def.MaxHealth)
	clamped := math.Min(math.Max(raw, float64(lo)), float64(hi))
	dmg := int(math.Floor(clamped))

	if opts.Boss {
		dmg = int(math.Floor(float64(dmg) * opts.Tuning.BossDampener))
		if dmg < 1 && hi >= 1 {
			dmg = 1
		}
	}
	if dmg < 0 {
		dmg = 0
	}

	return Hit{
		Damage:   dmg,
		Raw:      raw,
		Lower:    lo,
		Upper:    hi,
		Dampened: opts.Boss,
	}
}
