package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/shinobi/internal/game/combat"
	"github.com/cory-johannsen/shinobi/internal/game/equipment"
	"github.com/cory-johannsen/shinobi/internal/game/powerstate"
	"github.com/cory-johannsen/shinobi/internal/game/stats"
)

const attackerYAML = `
id: sasuke
name: Sasuke
base:
  vitality: 18
  physical: 30
  energy: 40
  seal: 12
elements:
  lightning: 3
techniques:
  chidori: 2
items: [kunai, forehead_protector]
power:
  kind: cursed_seal
  tier: 1
  activated_at: 2026-01-01T00:00:00Z
`

const defenderYAML = `
name: Gaara
base:
  vitality: 30
  physical: 10
  energy: 35
current_health: 200
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadCombatant(t *testing.T) {
	c, err := loadCombatant(writeFile(t, "a.yaml", attackerYAML), equipment.DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, "sasuke", c.ID)
	assert.Equal(t, 40, c.Base.Energy)
	assert.Len(t, c.Equipment, 2)
	assert.Equal(t, 2, c.Techniques["chidori"])
	require.NotNil(t, c.Power)
	assert.Equal(t, powerstate.CursedSeal, c.Power.Kind)
	assert.Nil(t, c.CurrentHealth)

	path := writeFile(t, "d.yaml", defenderYAML)
	d, err := loadCombatant(path, equipment.DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, path, d.ID)
	assert.Equal(t, "Gaara", d.Name)
	require.NotNil(t, d.CurrentHealth)
	assert.Equal(t, 200, *d.CurrentHealth)
}

func TestLoadCombatant_Errors(t *testing.T) {
	_, err := loadCombatant(filepath.Join(t.TempDir(), "missing.yaml"), equipment.DefaultRegistry())
	assert.Error(t, err)

	_, err = loadCombatant(writeFile(t, "bad.yaml", "base: [1, 2"), equipment.DefaultRegistry())
	assert.Error(t, err)

	_, err = loadCombatant(writeFile(t, "items.yaml", "items: [gourd]"), equipment.DefaultRegistry())
	assert.ErrorContains(t, err, "gourd")

	_, err = loadCombatant(writeFile(t, "huge.yaml", "base:\n  vitality: 922337203685477580\n"), equipment.DefaultRegistry())
	assert.ErrorContains(t, err, "vitality")

	_, err = loadCombatant(writeFile(t, "levels.yaml", "elements:\n  earth: 1001\n"), equipment.DefaultRegistry())
	assert.ErrorContains(t, err, "element earth")
}

func TestRun_JSONIsReproducible(t *testing.T) {
	a := writeFile(t, "a.yaml", attackerYAML)
	d := writeFile(t, "d.yaml", defenderYAML)
	args := []string{"-attacker", a, "-defender", d, "-seed", "99", "-json"}

	var first, second bytes.Buffer
	require.NoError(t, run(args, &first))
	require.NoError(t, run(args, &second))
	assert.Equal(t, first.String(), second.String())

	var res combat.Result
	require.NoError(t, json.Unmarshal(first.Bytes(), &res))
	assert.NotEqual(t, combat.StateOngoing, res.State)
	assert.Equal(t, combat.ModeStandard, res.Mode)
	assert.Equal(t, 200, res.DefenderStart)
	assert.NotEmpty(t, res.Log)
}

func TestRun_BossReport(t *testing.T) {
	a := writeFile(t, "a.yaml", attackerYAML)
	d := writeFile(t, "d.yaml", defenderYAML)

	var out bytes.Buffer
	require.NoError(t, run([]string{"-attacker", a, "-defender", d, "-seed", "3", "-boss"}, &out))
	text := out.String()
	assert.Contains(t, text, "Sasuke (")
	assert.Contains(t, text, "boss mode")
	assert.Contains(t, text, "final health")
}

func TestRun_Errors(t *testing.T) {
	a := writeFile(t, "a.yaml", attackerYAML)
	tests := map[string][]string{
		"missing defender": {"-attacker", a},
		"bad seed":         {"-attacker", a, "-defender", a, "-seed", "-4"},
		"unknown flag":     {"-attacker", a, "-defender", a, "-rounds", "3"},
		"missing config":   {"-attacker", a, "-defender", a, "-config", filepath.Join(t.TempDir(), "none.yaml")},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, run(args, &bytes.Buffer{}))
		})
	}
}

func TestReport_Draw(t *testing.T) {
	var out bytes.Buffer
	a := &combat.Combatant{Name: "A"}
	d := &combat.Combatant{Name: "D"}
	report(&out, a, d, combat.Result{
		State: combat.StateDraw, Winner: combat.SideNone, Turns: 100, CapReached: true,
		AttackerStats: combat.EffectiveStats{Stats: stats.Block{}, MaxHealth: 100},
		DefenderStats: combat.EffectiveStats{MaxHealth: 100},
	})
	assert.Contains(t, out.String(), "draw after 100 turns (turn cap reached)")
}
