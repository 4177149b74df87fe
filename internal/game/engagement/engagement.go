// Package engagement defines the persisted record of a resolved duel.
package engagement

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/shinobi/internal/game/combat"
)

// ErrStale is returned by Record when a profile's health changed after the
// engagement was snapshotted.
var ErrStale = errors.New("profile health changed during engagement")

// Prior is the health each profile held when the engagement was snapshotted.
// A nil value means full health.
type Prior struct {
	Attacker *int
	Defender *int
}

// Matches reports whether the profiles still hold p's health values.
func (p *Prior) Matches(attacker, defender *int) bool {
	return sameHealth(p.Attacker, attacker) && sameHealth(p.Defender, defender)
}

func sameHealth(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Record is the stored outcome of one engagement between two profiles.
type Record struct {
	ID         uuid.UUID `json:"id"`
	AttackerID string    `json:"attacker_id"`
	DefenderID string    `json:"defender_id"`

	Mode       combat.Mode  `json:"mode"`
	State      combat.State `json:"state"`
	Winner     combat.Side  `json:"winner"`
	Turns      int          `json:"turns"`
	CapReached bool         `json:"cap_reached"`

	// AttackerHealth and DefenderHealth are the final health values written back
	// to the profiles.
	AttackerHealth int `json:"attacker_health"`
	DefenderHealth int `json:"defender_health"`

	// Seed is set when the engagement ran on a seeded dice source and can be replayed.
	Seed *uint64 `json:"seed,omitempty"`

	Log       []combat.LogEntry `json:"log"`
	CreatedAt time.Time         `json:"created_at"`

	// Prior, when set, makes storage reject the record with ErrStale unless both
	// profiles still hold these health values. It is not persisted.
	Prior *Prior `json:"-"`
}

// New builds a Record with a fresh random ID from an engine result.
//
// Postcondition: Returns a Record whose ID is a new version 4 UUID.
func New(attackerID, defenderID string, res combat.Result, seed *uint64, at time.Time) *Record {
	return &Record{
		ID:             uuid.New(),
		AttackerID:     attackerID,
		DefenderID:     defenderID,
		Mode:           res.Mode,
		State:          res.State,
		Winner:         res.Winner,
		Turns:          res.Turns,
		CapReached:     res.CapReached,
		AttackerHealth: res.AttackerHealth,
		DefenderHealth: res.DefenderHealth,
		Seed:           seed,
		Log:            res.Log,
		CreatedAt:      at,
	}
}
