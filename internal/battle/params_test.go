package battle_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/shinobi/internal/battle"
	"github.com/cory-johannsen/shinobi/internal/game/combat"
	"github.com/cory-johannsen/shinobi/internal/game/equipment"
	"github.com/cory-johannsen/shinobi/internal/game/stats"
)

func TestSeed_Decodes(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{`7`, 7},
		{`"7"`, 7},
		{`"18446744073709551615"`, 18446744073709551615},
		{`1e+06`, 1000000},
		{`0`, 0},
	}
	for _, tc := range tests {
		var s battle.Seed
		require.NoError(t, json.Unmarshal([]byte(tc.in), &s), tc.in)
		assert.Equal(t, battle.Seed(tc.want), s, tc.in)
	}
	for _, bad := range []string{`-1`, `1.5`, `"abc"`, `true`} {
		var s battle.Seed
		assert.Error(t, json.Unmarshal([]byte(bad), &s), bad)
	}
}

func TestSeed_Property_StringRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := battle.Seed(rapid.Uint64().Draw(rt, "seed"))
		data, err := json.Marshal(v)
		require.NoError(rt, err)
		var got battle.Seed
		require.NoError(rt, json.Unmarshal(data, &got))
		assert.Equal(rt, v, got)
	})
}

func TestEngageParams_Request(t *testing.T) {
	var p battle.EngageParams
	require.NoError(t, json.Unmarshal([]byte(`{"attacker_id":"a","defender_id":"d","mode":"boss","seed":9}`), &p))
	req, err := p.Request()
	require.NoError(t, err)
	assert.Equal(t, "a", req.AttackerID)
	require.NotNil(t, req.Mode)
	assert.Equal(t, combat.ModeBoss, *req.Mode)
	assert.Equal(t, uint64(9), *req.Seed)

	req, err = battle.EngageParams{AttackerID: "a", DefenderID: "d"}.Request()
	require.NoError(t, err)
	assert.Nil(t, req.Mode)
	assert.Nil(t, req.Seed)

	_, err = battle.EngageParams{AttackerID: "a", DefenderID: "d", Mode: "raid"}.Request()
	assert.ErrorIs(t, err, battle.ErrInvalidRequest)
}

func TestSimulateParams_Request(t *testing.T) {
	var p battle.SimulateParams
	require.NoError(t, json.Unmarshal([]byte(`{
		"attacker": {"id": "a", "name": "A", "base": {"physical": 20}, "current_health": 50},
		"defender": {"id": "d", "name": "D", "base": {"vitality": 5},
			"equipment": [{"id": "kunai", "name": "Kunai", "bonuses": {"physical": 4}}],
			"power": {"kind": "cursed_seal", "tier": 1, "activated_at": "2026-01-01T00:00:00Z"}},
		"at": "2026-01-01T00:10:00Z"
	}`), &p))

	req, err := p.Request()
	require.NoError(t, err)
	assert.Equal(t, combat.ModeStandard, req.Mode)
	assert.Equal(t, 20, req.Attacker.Base.Physical)
	assert.Equal(t, 50, *req.Attacker.CurrentHealth)
	require.Len(t, req.Defender.Equipment, 1)
	assert.Equal(t, 4, req.Defender.Equipment[0].Bonus().Physical)
	assert.Equal(t, "cursed_seal", req.Defender.Power.Kind)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC), req.At)

	_, err = battle.SimulateParams{Attacker: req.Attacker}.Request()
	assert.ErrorIs(t, err, battle.ErrInvalidRequest)
	_, err = battle.SimulateParams{Attacker: req.Attacker, Defender: req.Defender, Mode: "duel"}.Request()
	assert.ErrorIs(t, err, battle.ErrInvalidRequest)
}

func TestSimulateParams_Request_AttributeCeiling(t *testing.T) {
	attacker := &combat.Combatant{ID: "a", Name: "A", Base: stats.Block{Physical: 50}}
	atCeiling := &combat.Combatant{ID: "d", Name: "D", Base: stats.Block{Vitality: stats.MaxAttribute}}
	_, err := battle.SimulateParams{Attacker: attacker, Defender: atCeiling}.Request()
	assert.NoError(t, err)

	tests := []struct {
		name     string
		defender *combat.Combatant
		want     string
	}{
		{"base attribute", &combat.Combatant{ID: "d", Base: stats.Block{Vitality: stats.MaxAttribute + 1}}, "defender: base: vitality"},
		{"overflowing base attribute", &combat.Combatant{ID: "d", Base: stats.Block{Vitality: math.MaxInt64 / 10}}, "defender: base: vitality"},
		{"element level", &combat.Combatant{ID: "d", Elements: map[string]int{"earth": stats.MaxLevel + 1}}, "element earth"},
		{"technique level", &combat.Combatant{ID: "d", Techniques: map[string]int{"chidori": stats.MaxLevel + 1}}, "technique chidori"},
		{"item bonus", &combat.Combatant{ID: "d", Equipment: []equipment.Item{
			{ID: "weighted_bands", Bonuses: map[stats.Attribute]int{stats.Vitality: stats.MaxAttribute + 1}},
		}}, "item weighted_bands"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := battle.SimulateParams{Attacker: attacker, Defender: tt.defender}.Request()
			require.ErrorIs(t, err, battle.ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.want)

			_, err = battle.SimulateParams{Attacker: tt.defender, Defender: attacker}.Request()
			require.ErrorIs(t, err, battle.ErrInvalidRequest)
			assert.Contains(t, err.Error(), "attacker:")
		})
	}
}
