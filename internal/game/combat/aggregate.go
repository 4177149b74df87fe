package combat

import (
	"time"

	"github.com/cory-johannsen/shinobi/internal/game/element"
	"github.com/cory-johannsen/shinobi/internal/game/equipment"
	"github.com/cory-johannsen/shinobi/internal/game/powerstate"
	"github.com/cory-johannsen/shinobi/internal/game/stats"
)

// Aggregator combines a combatant's base attributes with every bonus source.
type Aggregator struct {
	elements *element.Registry
	powers   *powerstate.Registry
	pools    stats.Pools
}

// NewAggregator creates an Aggregator.
//
// Precondition: elements and powers must be non-nil.
func NewAggregator(elements *element.Registry, powers *powerstate.Registry, pools stats.Pools) *Aggregator {
	return &Aggregator{elements: elements, powers: powers, pools: pools}
}

// Aggregate computes c's effective stats at now:
// base + equipment + element levels, then the active power tier's multipliers,
// then the derived health and resource pools.
//
// Unknown elements, power kinds and tiers contribute nothing. An expired power
// state is ignored; c is never modified.
//
// Precondition: c must be non-nil.
// Postcondition: every attribute of the result is in [0, stats.MaxAttribute];
// both pools are in [0, stats.MaxPool].
func (a *Aggregator) Aggregate(c *Combatant, now time.Time) EffectiveStats {
	block := c.Base.
		Plus(equipment.Sum(c.Equipment)).
		Plus(a.elements.Bonuses(c.Elements)).
		Bounded()

	tierLevel := 0
	if tier, ok := a.powers.Effective(c.Power, now); ok {
		block = tier.Apply(block).Bounded()
		tierLevel = tier.Level
	}

	return EffectiveStats{
		Stats:       block,
		MaxHealth:   a.pools.MaxHealth(block),
		MaxResource: a.pools.MaxResource(block),
		PowerTier:   tierLevel,
	}
}
