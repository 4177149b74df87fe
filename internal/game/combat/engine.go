package combat

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shinobi/internal/game/content"
	"github.com/cory-johannsen/shinobi/internal/game/dice"
	"github.com/cory-johannsen/shinobi/internal/game/stats"
	"github.com/cory-johannsen/shinobi/internal/game/technique"
)

// State is the engagement state. Ongoing is the only non-terminal state.
type State string

const (
	StateOngoing     State = "ongoing"
	StateAttackerWon State = "attacker_won"
	StateDefenderWon State = "defender_won"
	StateDraw        State = "draw"
)

const (
	eventDefenderDefeated = "defender_defeated"
	eventAttackerDefeated = "attacker_defeated"
	eventDraw             = "draw"
)

// genericTechnique names attacks made without a learned technique.
var genericTechnique = map[stats.Category]string{
	stats.CategoryPhysical: "Strike",
	stats.CategoryEnergy:   "Energy Blast",
	stats.CategoryIllusion: "Illusion",
}

// LogEntry records one turn of one side.
type LogEntry struct {
	Turn         int            `json:"turn"`
	Actor        Side           `json:"actor"`
	ActorName    string         `json:"actor_name"`
	Category     stats.Category `json:"category"`
	Technique    string         `json:"technique"`
	Description  string         `json:"description"`
	Damage       int            `json:"damage"`
	TargetHealth int            `json:"target_health"`
}

// Result is the outcome of one engagement.
type Result struct {
	Log            []LogEntry     `json:"log"`
	State          State          `json:"state"`
	Winner         Side           `json:"winner"`
	Mode           Mode           `json:"mode"`
	AttackerHealth int            `json:"attacker_health"`
	DefenderHealth int            `json:"defender_health"`
	AttackerStart  int            `json:"attacker_start_health"`
	DefenderStart  int            `json:"defender_start_health"`
	AttackerStats  EffectiveStats `json:"attacker_stats"`
	DefenderStats  EffectiveStats `json:"defender_stats"`
	Turns          int            `json:"turns"`
	CapReached     bool           `json:"cap_reached"`
}

// Engine runs engagements. It is safe for concurrent use provided the
// Selector is; the built-in selectors hold no state.
type Engine struct {
	agg        *Aggregator
	selector   Selector
	techniques *technique.Registry
	tuning     Tuning
	logger     *zap.Logger
}

// NewEngine creates an Engine.
//
// Precondition: c and selector must be non-nil; tuning must pass Validate.
// A nil logger disables logging.
// Postcondition: Returns a non-nil Engine.
func NewEngine(c *content.Content, tuning Tuning, selector Selector, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		agg:        NewAggregator(c.Elements, c.PowerStates, tuning.Pools),
		selector:   selector,
		techniques: c.Techniques,
		tuning:     tuning,
		logger:     logger,
	}
}

// Tuning returns the engine's balance constants.
func (e *Engine) Tuning() Tuning { return e.tuning }

// side is the per-engagement mutable state of one party.
type side struct {
	who   Side
	c     *Combatant
	stats EffectiveStats
	hp    int
}

// Run plays attacker against defender until one side reaches zero health or
// the turn cap is hit. Each turn the attacker acts first; a defender reduced to
// zero does not retaliate. A side that starts at zero health is already defeated.
//
// Run never modifies attacker or defender. Given the same snapshots, mode, now
// and an identically seeded src, Run returns an identical Result.
//
// Precondition: attacker, defender and src must be non-nil.
// Postcondition: Result.State is terminal; Result.Turns <= Tuning.MaxTurns.
func (e *Engine) Run(attacker, defender *Combatant, mode Mode, src dice.Source, now time.Time) Result {
	att := &side{who: SideAttacker, c: attacker, stats: e.agg.Aggregate(attacker, now)}
	def := &side{who: SideDefender, c: defender, stats: e.agg.Aggregate(defender, now)}
	att.hp = attacker.startingHealth(att.stats.MaxHealth)
	def.hp = defender.startingHealth(def.stats.MaxHealth)

	res := Result{
		Mode:          mode,
		AttackerStats: att.stats,
		DefenderStats: def.stats,
		AttackerStart: att.hp,
		DefenderStart: def.hp,
	}
	machine := newMachine()
	ctx := context.Background()

	switch {
	case att.hp == 0 && def.hp == 0:
		e.fire(ctx, machine, eventDraw)
	case def.hp == 0:
		e.fire(ctx, machine, eventDefenderDefeated)
	case att.hp == 0:
		e.fire(ctx, machine, eventAttackerDefeated)
	}

	for turn := 1; machine.Is(string(StateOngoing)) && turn <= e.tuning.MaxTurns; turn++ {
		res.Turns = turn
		res.Log = append(res.Log, e.act(turn, att, def, mode, src))
		if def.hp == 0 {
			e.fire(ctx, machine, eventDefenderDefeated)
			break
		}
		res.Log = append(res.Log, e.act(turn, def, att, mode, src))
		if att.hp == 0 {
			e.fire(ctx, machine, eventAttackerDefeated)
		}
	}

	if machine.Is(string(StateOngoing)) {
		res.CapReached = true
		e.fire(ctx, machine, e.breakTie(att, def))
	}

	res.State = State(machine.Current())
	res.Winner = winnerOf(res.State)
	res.AttackerHealth = att.hp
	res.DefenderHealth = def.hp

	e.logger.Debug("engagement resolved",
		zap.String("attacker", attacker.ID),
		zap.String("defender", defender.ID),
		zap.String("mode", mode.String()),
		zap.String("state", string(res.State)),
		zap.Int("turns", res.Turns),
		zap.Bool("cap_reached", res.CapReached),
		zap.Int("attacker_hp", res.AttackerHealth),
		zap.Int("defender_hp", res.DefenderHealth),
	)
	return res
}

// act resolves one attack of actor on target and returns its log entry.
func (e *Engine) act(turn int, actor, target *side, mode Mode, src dice.Source) LogEntry {
	cat := e.selector.Select(actor.c, src)
	hit := Resolve(actor.stats, target.stats, cat, Options{
		Tuning: e.tuning,
		Boss:   mode == ModeBoss && target.who == SideDefender,
	})
	target.hp = clampHealth(target.hp-hit.Damage, target.stats.MaxHealth)

	name := genericTechnique[cat]
	if def, _ := e.techniques.Best(actor.c.Techniques, cat); def != nil {
		name = def.Name
	}
	return LogEntry{
		Turn:         turn,
		Actor:        actor.who,
		ActorName:    actor.c.Name,
		Category:     cat,
		Technique:    name,
		Description:  fmt.Sprintf("%s uses %s on %s for %d damage.", actor.c.Name, name, target.c.Name, hit.Damage),
		Damage:       hit.Damage,
		TargetHealth: target.hp,
	}
}

// breakTie picks the terminal event for an engagement that hit the turn cap.
func (e *Engine) breakTie(att, def *side) string {
	if e.tuning.TiePolicy == TieDraw {
		return eventDraw
	}
	// Compare att.hp/att.max with def.hp/def.max without floating point.
	lhs := int64(att.hp) * int64(def.stats.MaxHealth)
	rhs := int64(def.hp) * int64(att.stats.MaxHealth)
	switch {
	case lhs > rhs:
		return eventDefenderDefeated
	case rhs > lhs:
		return eventAttackerDefeated
	default:
		return eventDraw
	}
}

func (e *Engine) fire(ctx context.Context, m *fsm.FSM, event string) {
	if err := m.Event(ctx, event); err != nil {
		e.logger.Error("engagement state transition failed",
			zap.String("event", event),
			zap.String("state", m.Current()),
			zap.Error(err),
		)
	}
}

func newMachine() *fsm.FSM {
	ongoing := []string{string(StateOngoing)}
	return fsm.NewFSM(
		string(StateOngoing),
		fsm.Events{
			{Name: eventDefenderDefeated, Src: ongoing, Dst: string(StateAttackerWon)},
			{Name: eventAttackerDefeated, Src: ongoing, Dst: string(StateDefenderWon)},
			{Name: eventDraw, Src: ongoing, Dst: string(StateDraw)},
		},
		fsm.Callbacks{},
	)
}

func winnerOf(s State) Side {
	switch s {
	case StateAttackerWon:
		return SideAttacker
	case StateDefenderWon:
		return SideDefender
	default:
		return SideNone
	}
}
