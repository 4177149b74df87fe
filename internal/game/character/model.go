// Package character defines the persisted shinobi profile and the pure logic that
// turns it into a combat snapshot.
package character

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/cory-johannsen/shinobi/internal/game/stats"
)

// Activation records one use of a temporary power state.
// A zero Tier means the state was never activated.
type Activation struct {
	Tier        int       `json:"tier"`
	ActivatedAt time.Time `json:"activated_at"`
}

// Profile represents a shinobi's persistent state.
//
// Every field other than ID is optional: nil maps and slices are empty, a nil
// CurrentHealth means full health and a nil Activation means never activated.
// CreatedAt and UpdatedAt are set by the persistence layer.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Attributes    map[stats.Attribute]int `json:"attributes,omitempty"`
	Elements      map[string]int          `json:"elements,omitempty"`
	Techniques    map[string]int          `json:"techniques,omitempty"`
	EquippedItems []string                `json:"equipped_items,omitempty"`

	CurrentHealth *int        `json:"current_health,omitempty"`
	CursedSeal    *Activation `json:"cursed_seal,omitempty"`
	AwakenedEye   *Activation `json:"awakened_eye,omitempty"`

	// Boss marks a boss-tier opponent; hits landed on it are dampened.
	Boss bool `json:"boss"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Base returns the profile's attributes as a block. Missing attributes are 0.
func (p *Profile) Base() stats.Block {
	var b stats.Block
	for a, v := range p.Attributes {
		b.Add(a, v)
	}
	return b
}

// Validate checks a profile before it is stored: ID and Name are required,
// attributes stay within ±stats.MaxAttribute, element and technique levels and
// power-state tiers within [0, stats.MaxLevel], and CurrentHealth is non-negative.
//
// Postcondition: Returns nil or an error naming every violation.
func (p *Profile) Validate() error {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if p.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	if p.Name == "" {
		errs = append(errs, "name must not be empty")
	}
	for _, a := range stats.All {
		if v, ok := p.Attributes[a]; ok {
			add(stats.CheckAttribute(a.String(), v))
		}
	}
	for _, id := range slices.Sorted(maps.Keys(p.Elements)) {
		add(stats.CheckLevel("element "+id, p.Elements[id]))
	}
	for _, id := range slices.Sorted(maps.Keys(p.Techniques)) {
		add(stats.CheckLevel("technique "+id, p.Techniques[id]))
	}
	if p.CurrentHealth != nil && *p.CurrentHealth < 0 {
		errs = append(errs, fmt.Sprintf("current_health must be non-negative, got %d", *p.CurrentHealth))
	}
	if p.CursedSeal != nil {
		add(stats.CheckLevel("cursed_seal tier", p.CursedSeal.Tier))
	}
	if p.AwakenedEye != nil {
		add(stats.CheckLevel("awakened_eye tier", p.AwakenedEye.Tier))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
