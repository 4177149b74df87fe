package character

import (
	"errors"
	"maps"
	"time"

	"github.com/cory-johannsen/shinobi/internal/game/combat"
	"github.com/cory-johannsen/shinobi/internal/game/content"
	"github.com/cory-johannsen/shinobi/internal/game/equipment"
	"github.com/cory-johannsen/shinobi/internal/game/powerstate"
)

// Builder turns persisted profiles into per-engagement combat snapshots.
type Builder struct {
	items  *equipment.Registry
	powers *powerstate.Registry
}

// NewBuilder creates a Builder over the equipment and power-state registries of c.
//
// Precondition: c must be non-nil.
func NewBuilder(c *content.Content) *Builder {
	return &Builder{items: c.Equipment, powers: c.PowerStates}
}

// Snapshot builds a fresh Combatant from p as of now.
// Equipped item IDs missing from the registry are skipped. Of the cursed seal and
// awakened eye activations, the most recently activated one still in force becomes
// the combatant's power state; the other is ignored. A stored negative current
// health becomes 0; the engine clamps the upper end against max health.
//
// The returned Combatant shares no maps or slices with p.
//
// Precondition: p must be non-nil with a non-empty ID.
// Postcondition: Returns a Combatant with at most one power state, or a non-nil error.
func (b *Builder) Snapshot(p *Profile, now time.Time) (*combat.Combatant, error) {
	if p == nil {
		return nil, errors.New("profile must not be nil")
	}
	if p.ID == "" {
		return nil, errors.New("profile id must not be empty")
	}

	items, _ := b.items.Resolve(p.EquippedItems)
	c := &combat.Combatant{
		ID:         p.ID,
		Name:       p.Name,
		Base:       p.Base(),
		Equipment:  items,
		Elements:   maps.Clone(p.Elements),
		Techniques: maps.Clone(p.Techniques),
		Power:      b.activePower(p, now),
	}
	if p.CurrentHealth != nil {
		hp := max(*p.CurrentHealth, 0)
		c.CurrentHealth = &hp
	}
	return c, nil
}

// activePower returns the most recent activation of p still in force at now, or nil.
// On equal timestamps the cursed seal wins.
func (b *Builder) activePower(p *Profile, now time.Time) *powerstate.Active {
	var best *powerstate.Active
	for _, cand := range []struct {
		kind string
		act  *Activation
	}{
		{powerstate.CursedSeal, p.CursedSeal},
		{powerstate.AwakenedEye, p.AwakenedEye},
	} {
		if cand.act == nil || cand.act.Tier <= 0 {
			continue
		}
		active := &powerstate.Active{Kind: cand.kind, Tier: cand.act.Tier, ActivatedAt: cand.act.ActivatedAt}
		if _, ok := b.powers.Effective(active, now); !ok {
			continue
		}
		if best == nil || active.ActivatedAt.After(best.ActivatedAt) {
			best = active
		}
	}
	return best
}

// ModeFor returns the engagement mode used against defender: boss rules for a
// boss-tier profile, standard otherwise.
func ModeFor(defender *Profile) combat.Mode {
	if defender != nil && defender.Boss {
		return combat.ModeBoss
	}
	return combat.ModeStandard
}
