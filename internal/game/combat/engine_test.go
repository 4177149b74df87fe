package combat_test

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/shinobi/internal/game/combat"
	"github.com/cory-johannsen/shinobi/internal/game/content"
	"github.com/cory-johannsen/shinobi/internal/game/dice"
	"github.com/cory-johannsen/shinobi/internal/game/powerstate"
	"github.com/cory-johannsen/shinobi/internal/game/stats"
)

func newEngine(t *testing.T, tuning combat.Tuning, sel combat.Selector) *combat.Engine {
	t.Helper()
	require.NoError(t, tuning.Validate())
	return combat.NewEngine(content.Default(), tuning, sel, zaptest.NewLogger(t))
}

func fighter(id string, base stats.Block) *combat.Combatant {
	return &combat.Combatant{ID: id, Name: id, Base: base}
}

func TestRun_PreDefeated(t *testing.T) {
	eng := newEngine(t, combat.DefaultTuning(), combat.UniformSelector{})
	tests := []struct {
		name   string
		attHP  *int
		defHP  *int
		state  combat.State
		winner combat.Side
	}{
		{"defender down", nil, intPtr(0), combat.StateAttackerWon, combat.SideAttacker},
		{"attacker down", intPtr(0), nil, combat.StateDefenderWon, combat.SideDefender},
		{"both down", intPtr(-3), intPtr(0), combat.StateDraw, combat.SideNone},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := fighter("Naruto", stats.Block{Physical: 10})
			d := fighter("Sasuke", stats.Block{Physical: 10})
			a.CurrentHealth, d.CurrentHealth = tc.attHP, tc.defHP

			res := eng.Run(a, d, combat.ModeStandard, dice.NewSeededSource(1), now)
			assert.Equal(t, tc.state, res.State)
			assert.Equal(t, tc.winner, res.Winner)
			assert.Empty(t, res.Log)
			assert.Zero(t, res.Turns)
			assert.False(t, res.CapReached)
		})
	}
}

func TestRun_DefeatedDefenderDoesNotRetaliate(t *testing.T) {
	eng := newEngine(t, combat.DefaultTuning(), always(stats.CategoryPhysical))
	a := fighter("Rock Lee", stats.Block{Physical: 50})
	d := fighter("Gaara", stats.Block{})
	d.CurrentHealth = intPtr(10)

	res := eng.Run(a, d, combat.ModeStandard, dice.NewSeededSource(7), now)
	require.Len(t, res.Log, 1)
	assert.Equal(t, combat.SideAttacker, res.Log[0].Actor)
	assert.Equal(t, 0, res.Log[0].TargetHealth)
	assert.Equal(t, combat.StateAttackerWon, res.State)
	assert.Equal(t, combat.SideAttacker, res.Winner)
	assert.Equal(t, 0, res.DefenderHealth)
	assert.Equal(t, res.AttackerStart, res.AttackerHealth)
	assert.Equal(t, 1, res.Turns)
}

// With one turn, the attacker deals 55 of the defender's 250 and takes 8 of its own 400.
func TestRun_TurnCap(t *testing.T) {
	attacker := func() *combat.Combatant { return fighter("A", stats.Block{Physical: 30, Vitality: 20}) }
	defender := func() *combat.Combatant { return fighter("D", stats.Block{Vitality: 10}) }

	tuning := combat.DefaultTuning()
	tuning.MaxTurns = 1

	eng := newEngine(t, tuning, always(stats.CategoryPhysical))
	res := eng.Run(attacker(), defender(), combat.ModeStandard, dice.NewSeededSource(1), now)
	assert.True(t, res.CapReached)
	assert.Equal(t, 1, res.Turns)
	assert.Equal(t, 392, res.AttackerHealth)
	assert.Equal(t, 195, res.DefenderHealth)
	assert.Equal(t, combat.StateAttackerWon, res.State)
	assert.Equal(t, combat.SideAttacker, res.Winner)

	tuning.TiePolicy = combat.TieDraw
	eng = newEngine(t, tuning, always(stats.CategoryPhysical))
	res = eng.Run(attacker(), defender(), combat.ModeStandard, dice.NewSeededSource(1), now)
	assert.True(t, res.CapReached)
	assert.Equal(t, combat.StateDraw, res.State)
	assert.Equal(t, combat.SideNone, res.Winner)
}

func TestRun_TurnCapEqualFractionsDraw(t *testing.T) {
	tuning := combat.DefaultTuning()
	tuning.MaxTurns = 2
	eng := newEngine(t, tuning, always(stats.CategoryEnergy))
	a := fighter("A", stats.Block{Vitality: 10, Energy: 20})
	d := fighter("D", stats.Block{Vitality: 10, Energy: 20})

	res := eng.Run(a, d, combat.ModeStandard, dice.NewSeededSource(1), now)
	assert.True(t, res.CapReached)
	assert.Equal(t, res.AttackerHealth, res.DefenderHealth)
	assert.Equal(t, combat.StateDraw, res.State)
}

func TestRun_BossModeDampensOnlyDefender(t *testing.T) {
	tuning := halfCapTuning()
	tuning.MaxTurns = 1
	eng := newEngine(t, tuning, always(stats.CategoryPhysical))
	a := fighter("A", stats.Block{Physical: 50, Vitality: 10})
	d := fighter("Boss", stats.Block{Physical: 50, Vitality: 10})

	res := eng.Run(a, d, combat.ModeBoss, dice.NewSeededSource(1), now)
	require.Len(t, res.Log, 2)
	assert.Equal(t, 57, res.Log[0].Damage)
	assert.Equal(t, 95, res.Log[1].Damage)
	assert.Equal(t, 193, res.DefenderHealth)
	assert.Equal(t, 155, res.AttackerHealth)
	assert.Equal(t, combat.ModeBoss, res.Mode)
	assert.Equal(t, combat.StateDefenderWon, res.State)

	res = eng.Run(a, d, combat.ModeStandard, dice.NewSeededSource(1), now)
	assert.Equal(t, 95, res.Log[0].Damage)
}

func TestRun_TechniqueNaming(t *testing.T) {
	tuning := combat.DefaultTuning()
	tuning.MaxTurns = 1
	eng := newEngine(t, tuning, always(stats.CategoryEnergy))

	a := fighter("Kakashi", stats.Block{Energy: 20, Vitality: 20})
	a.Techniques = map[string]int{"chidori": 3, "fireball": 1}
	d := fighter("Zabuza", stats.Block{Energy: 20, Vitality: 20})

	res := eng.Run(a, d, combat.ModeStandard, dice.NewSeededSource(1), now)
	require.Len(t, res.Log, 2)
	assert.Equal(t, "Chidori", res.Log[0].Technique)
	assert.Equal(t, stats.CategoryEnergy, res.Log[0].Category)
	assert.Equal(t, "Kakashi", res.Log[0].ActorName)
	assert.Equal(t,
		fmt.Sprintf("Kakashi uses Chidori on Zabuza for %d damage.", res.Log[0].Damage),
		res.Log[0].Description)
	assert.Equal(t, "Energy Blast", res.Log[1].Technique)
	assert.Equal(t, combat.SideDefender, res.Log[1].Actor)
}

func TestRun_DoesNotModifyInputs(t *testing.T) {
	build := func() (*combat.Combatant, *combat.Combatant) {
		a := fighter("A", stats.Block{Physical: 40, Vitality: 5})
		a.Elements = map[string]int{"wind": 2}
		a.Techniques = map[string]int{"leaf_hurricane": 2}
		a.Power = &powerstate.Active{Kind: powerstate.CursedSeal, Tier: 1, ActivatedAt: now.Add(-time.Minute)}
		a.CurrentHealth = intPtr(120)
		d := fighter("D", stats.Block{Energy: 35, Vitality: 8})
		d.Power = &powerstate.Active{Kind: powerstate.AwakenedEye, Tier: 3, ActivatedAt: now.Add(-2 * time.Hour)}
		return a, d
	}
	a, d := build()
	wantA, wantD := build()

	eng := newEngine(t, combat.DefaultTuning(), combat.UniformSelector{})
	res := eng.Run(a, d, combat.ModeBoss, dice.NewSeededSource(3), now)
	require.NotEqual(t, combat.StateOngoing, res.State)
	assert.Equal(t, wantA, a)
	assert.Equal(t, wantD, d)
}

func TestRun_StartingHealthClamped(t *testing.T) {
	tuning := combat.DefaultTuning()
	tuning.MaxTurns = 1
	eng := newEngine(t, tuning, always(stats.CategoryIllusion))
	a := fighter("A", stats.Block{Vitality: 4})
	a.CurrentHealth = intPtr(9999)
	d := fighter("D", stats.Block{Vitality: 4})
	d.CurrentHealth = intPtr(50)

	res := eng.Run(a, d, combat.ModeStandard, dice.NewSeededSource(1), now)
	assert.Equal(t, 160, res.AttackerStart)
	assert.Equal(t, 160, res.AttackerStats.MaxHealth)
	assert.Equal(t, 50, res.DefenderStart)
}

func TestRun_LogsResolution(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	eng := combat.NewEngine(content.Default(), combat.DefaultTuning(), combat.UniformSelector{}, zap.New(core))
	res := eng.Run(fighter("A", stats.Block{Physical: 30}), fighter("D", stats.Block{Physical: 30}),
		combat.ModeStandard, dice.NewSeededSource(11), now)

	entries := logs.FilterMessage("engagement resolved").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(res.State), fields["state"])
	assert.Equal(t, int64(res.Turns), fields["turns"])
}

func TestNewEngine_NilLogger(t *testing.T) {
	eng := combat.NewEngine(content.Default(), combat.DefaultTuning(), combat.UniformSelector{}, nil)
	res := eng.Run(fighter("A", stats.Block{}), fighter("D", stats.Block{}), combat.ModeStandard, dice.NewSeededSource(5), now)
	assert.NotEqual(t, combat.StateOngoing, res.State)
}

func TestRun_Property_Deterministic(t *testing.T) {
	eng := combat.NewEngine(content.Default(), combat.DefaultTuning(), combat.WeightedSelector{Techniques: content.Default().Techniques}, nil)
	rapid.Check(t, func(rt *rapid.T) {
		a := genCombatant(rt, "a")
		d := genCombatant(rt, "d")
		seed := rapid.Uint64().Draw(rt, "seed")
		mode := rapid.SampledFrom([]combat.Mode{combat.ModeStandard, combat.ModeBoss}).Draw(rt, "mode")

		first := eng.Run(a, d, mode, dice.NewSeededSource(seed), now)
		second := eng.Run(a, d, mode, dice.NewSeededSource(seed), now)
		assert.Equal(rt, first, second)
	})
}

func TestRun_Property_Terminates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tuning := combat.DefaultTuning()
		tuning.MaxTurns = rapid.IntRange(1, 100).Draw(rt, "max_turns")
		tuning.TiePolicy = rapid.SampledFrom([]combat.TiePolicy{combat.TieHealthFraction, combat.TieDraw}).Draw(rt, "tie")
		eng := combat.NewEngine(content.Default(), tuning, combat.UniformSelector{}, nil)

		a := genCombatant(rt, "a")
		d := genCombatant(rt, "d")
		res := eng.Run(a, d, combat.ModeStandard, dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")), now)

		assert.NotEqual(rt, combat.StateOngoing, res.State)
		assert.LessOrEqual(rt, res.Turns, tuning.MaxTurns)
		assert.GreaterOrEqual(rt, res.AttackerHealth, 0)
		assert.GreaterOrEqual(rt, res.DefenderHealth, 0)
		assert.LessOrEqual(rt, res.AttackerHealth, res.AttackerStats.MaxHealth)
		assert.LessOrEqual(rt, res.DefenderHealth, res.DefenderStats.MaxHealth)

		switch {
		case res.CapReached:
			assert.Positive(rt, res.AttackerHealth)
			assert.Positive(rt, res.DefenderHealth)
		case res.State == combat.StateAttackerWon:
			assert.Zero(rt, res.DefenderHealth)
			assert.Positive(rt, res.AttackerHealth)
		case res.State == combat.StateDefenderWon:
			assert.Zero(rt, res.AttackerHealth)
			assert.Positive(rt, res.DefenderHealth)
		default:
			assert.Zero(rt, res.AttackerHealth)
			assert.Zero(rt, res.DefenderHealth)
		}

		for i, e := range res.Log {
			assert.GreaterOrEqual(rt, e.Damage, 0, "entry %d", i)
			assert.NotEmpty(rt, e.Technique)
		}
	})
}

func TestRun_OversizedAttributesSaturate(t *testing.T) {
	eng := newEngine(t, combat.DefaultTuning(), always(stats.CategoryPhysical))
	a := fighter("a", stats.Block{Physical: 50})
	d := fighter("d", stats.Block{Vitality: math.MaxInt64 / 10})

	res := eng.Run(a, d, combat.ModeStandard, dice.NewSeededSource(1), now)

	require.Positive(t, res.DefenderStats.MaxHealth)
	assert.LessOrEqual(t, res.DefenderStats.MaxHealth, stats.MaxPool)
	assert.Equal(t, stats.MaxAttribute, res.DefenderStats.Stats.Vitality)
	assert.Equal(t, res.DefenderStats.MaxHealth, res.DefenderStart)
	assert.Greater(t, res.Turns, 1)
	require.NotEmpty(t, res.Log)
	assert.Positive(t, res.Log[0].Damage)
	assertHealthInRange(t, res)
}

func TestRun_Property_UnboundedInputsKeepHealthInRange(t *testing.T) {
	techniques := content.Default().Techniques
	eng := combat.NewEngine(content.Default(), combat.DefaultTuning(), combat.WeightedSelector{Techniques: techniques}, nil)
	gen := func(rt *rapid.T, label string) *combat.Combatant {
		return &combat.Combatant{
			ID:   label,
			Name: label,
			Base: stats.Block{
				Vitality:     rapid.Int().Draw(rt, label+"_vit"),
				Physical:     rapid.Int().Draw(rt, label+"_phys"),
				Energy:       rapid.Int().Draw(rt, label+"_energy"),
				Illusion:     rapid.Int().Draw(rt, label+"_illusion"),
				Seal:         rapid.Int().Draw(rt, label+"_seal"),
				Intelligence: rapid.Int().Draw(rt, label+"_int"),
			},
			Elements: map[string]int{
				"earth": rapid.Int().Draw(rt, label+"_earth"),
				"wind":  rapid.Int().Draw(rt, label+"_wind"),
			},
			Techniques: map[string]int{
				"chidori":        rapid.Int().Draw(rt, label+"_chidori"),
				"leaf_hurricane": rapid.Int().Draw(rt, label+"_leaf"),
			},
		}
	}
	rapid.Check(t, func(rt *rapid.T) {
		a, d := gen(rt, "a"), gen(rt, "d")
		res := eng.Run(a, d, combat.ModeStandard, dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")), now)

		assert.NotEqual(rt, combat.StateOngoing, res.State)
		assertHealthInRange(rt, res)
	})
}

func assertHealthInRange(t assert.TestingT, res combat.Result) {
	for _, s := range []combat.EffectiveStats{res.AttackerStats, res.DefenderStats} {
		assert.GreaterOrEqual(t, s.MaxHealth, 0)
		assert.LessOrEqual(t, s.MaxHealth, stats.MaxPool)
	}
	maxOf := map[combat.Side]int{
		combat.SideAttacker: res.DefenderStats.MaxHealth,
		combat.SideDefender: res.AttackerStats.MaxHealth,
	}
	for i, e := range res.Log {
		assert.GreaterOrEqual(t, e.Damage, 0, "entry %d", i)
		assert.GreaterOrEqual(t, e.TargetHealth, 0, "entry %d", i)
		assert.LessOrEqual(t, e.TargetHealth, maxOf[e.Actor], "entry %d", i)
	}
	assert.GreaterOrEqual(t, res.AttackerHealth, 0)
	assert.GreaterOrEqual(t, res.DefenderHealth, 0)
	assert.LessOrEqual(t, res.AttackerHealth, res.AttackerStats.MaxHealth)
	assert.LessOrEqual(t, res.DefenderHealth, res.DefenderStats.MaxHealth)
}

func TestRun_ConcurrentEngagementsIndependent(t *testing.T) {
	eng := newEngine(t, combat.DefaultTuning(), combat.UniformSelector{})
	const n = 32
	a := fighter("A", stats.Block{Physical: 30, Energy: 25, Illusion: 20, Vitality: 10})
	d := fighter("D", stats.Block{Physical: 25, Energy: 30, Illusion: 15, Vitality: 12})

	want := make([]combat.Result, n)
	for i := range want {
		want[i] = eng.Run(a, d, combat.ModeStandard, dice.NewSeededSource(uint64(i)), now)
	}

	got := make([]combat.Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = eng.Run(a, d, combat.ModeStandard, dice.NewSeededSource(uint64(i)), now)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, want, got)
}
