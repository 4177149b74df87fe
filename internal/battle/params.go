package battle

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cory-johannsen/shinobi/internal/game/combat"
)

// Seed is a dice seed on the wire. It decodes from a JSON number or a decimal
// string; seeds above 2^53 must be sent as strings to survive float64 transports.
type Seed uint64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seed) UnmarshalJSON(data []byte) error {
	text := string(data)
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}
	if v, err := strconv.ParseUint(text, 10, 64); err == nil {
		*s = Seed(v)
		return nil
	}
	// Numbers relayed through float64 transports may arrive in exponent form.
	if f, err := strconv.ParseFloat(text, 64); err == nil && f >= 0 && f < math.MaxUint64 && f == math.Trunc(f) {
		*s = Seed(f)
		return nil
	}
	return fmt.Errorf("seed must be a non-negative integer, got %s", data)
}

// MarshalJSON encodes the seed as a decimal string.
func (s Seed) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(s), 10))
}

func (s *Seed) ptr() *uint64 {
	if s == nil {
		return nil
	}
	v := uint64(*s)
	return &v
}

// EngageParams is the wire form of EngageRequest.
type EngageParams struct {
	AttackerID string `json:"attacker_id"`
	DefenderID string `json:"defender_id"`
	// Mode is "standard" or "boss"; empty derives it from the defender.
	Mode string `json:"mode,omitempty"`
	Seed *Seed  `json:"seed,omitempty"`
}

// Request validates p and converts it.
//
// Postcondition: Returns an EngageRequest or an error wrapping ErrInvalidRequest.
func (p EngageParams) Request() (EngageRequest, error) {
	req := EngageRequest{AttackerID: p.AttackerID, DefenderID: p.DefenderID, Seed: p.Seed.ptr()}
	if p.Mode != "" {
		mode, err := combat.ParseMode(p.Mode)
		if err != nil {
			return EngageRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		req.Mode = &mode
	}
	return req, nil
}

// SimulateParams is the wire form of SimulateRequest.
type SimulateParams struct {
	Attacker *combat.Combatant `json:"attacker"`
	Defender *combat.Combatant `json:"defender"`
	Mode     string            `json:"mode,omitempty"`
	Seed     *Seed             `json:"seed,omitempty"`
	At       *time.Time        `json:"at,omitempty"`
}

// Request validates p and converts it.
//
// Postcondition: Returns a SimulateRequest or an error wrapping ErrInvalidRequest.
func (p SimulateParams) Request() (SimulateRequest, error) {
	mode, err := combat.ParseMode(p.Mode)
	if err != nil {
		return SimulateRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if p.Attacker == nil || p.Defender == nil {
		return SimulateRequest{}, fmt.Errorf("%w: attacker and defender snapshots are required", ErrInvalidRequest)
	}
	if err := validateSnapshots(p.Attacker, p.Defender); err != nil {
		return SimulateRequest{}, err
	}
	req := SimulateRequest{Attacker: p.Attacker, Defender: p.Defender, Mode: mode, Seed: p.Seed.ptr()}
	if p.At != nil {
		req.At = *p.At
	}
	return req, nil
}

func validateSnapshots(attacker, defender *combat.Combatant) error {
	if err := attacker.Validate(); err != nil {
		return fmt.Errorf("%w: attacker: %v", ErrInvalidRequest, err)
	}
	if err := defender.Validate(); err != nil {
		return fmt.Errorf("%w: defender: %v", ErrInvalidRequest, err)
	}
	return nil
}

// HistoryParams is the wire form of a History call.
type HistoryParams struct {
	ProfileID string `json:"profile_id"`
	Limit     int    `json:"limit,omitempty"`
}
