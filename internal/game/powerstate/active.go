package powerstate

import "time"

// Active records a power state activation on a combatant.
// Expiry is derived from ActivatedAt and the definition's Duration; it is never stored.
type Active struct {
	Kind        string    `yaml:"kind" json:"kind"`
	Tier        int       `yaml:"tier" json:"tier"`
	ActivatedAt time.Time `yaml:"activated_at" json:"activated_at"`
}

// Expired reports whether a is past its definition's duration at now.
//
// Postcondition: Returns false when def.Duration <= 0.
func (a Active) Expired(def *Def, now time.Time) bool {
	if def.Duration <= 0 {
		return false
	}
	return !now.Before(a.ActivatedAt.Add(def.Duration))
}

// Effective returns the tier in force for a at now. It returns false when a is nil,
// its kind or tier is unknown, or it has expired.
func (r *Registry) Effective(a *Active, now time.Time) (Tier, bool) {
	if a == nil {
		return Tier{}, false
	}
	def, ok := r.defs[a.Kind]
	if !ok || a.Expired(def, now) {
		return Tier{}, false
	}
	return def.Tier(a.Tier)
}
