package scripting

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shinobi/internal/game/combat"
	"github.com/cory-johannsen/shinobi/internal/game/dice"
	"github.com/cory-johannsen/shinobi/internal/game/stats"
	"github.com/cory-johannsen/shinobi/internal/game/technique"
)

// SelectFunction is the Lua global a selection script must define. It receives
// the acting combatant as a table and returns "physical", "energy" or "illusion".
//
//	function select_category(c)
//	  if c.levels.energy > c.levels.physical then return "energy" end
//	  return "physical"
//	end
//
// The combatant table carries id, name, base (attribute → value), elements and
// techniques (id → level), levels (category → summed technique levels) and, when
// the combatant has one, power {kind, tier}.
const SelectFunction = "select_category"

// Selector is a combat.Selector backed by a Lua script.
//
// A script error, an exhausted instruction budget or an invalid return value is
// logged at Warn and the turn falls back to uniform selection from the same dice
// source, so an engagement never fails because of its script.
//
// Selector is safe for concurrent use; calls are serialized on one VM.
type Selector struct {
	mu         sync.Mutex
	L          *lua.LState
	src        dice.Source
	limit      int
	techniques *technique.Registry
	fallback   combat.Selector
	logger     *zap.Logger
}

var _ combat.Selector = (*Selector)(nil)

// NewSelector loads the script at path into a fresh sandbox.
//
// Precondition: techniques must be non-nil; instLimit >= 0 (0 uses DefaultInstructionLimit).
// A nil logger disables logging.
// Postcondition: Returns a Selector whose script defines SelectFunction, or a non-nil error.
// The caller must call Close when done.
func NewSelector(path string, techniques *technique.Registry, instLimit int, logger *zap.Logger) (*Selector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Selector{
		limit:      instLimit,
		techniques: techniques,
		fallback:   combat.UniformSelector{},
		logger:     logger,
	}

	L, cancel := NewSandboxedState(instLimit)
	defer cancel()
	registerModules(L, func() dice.Source { return s.src }, logger)

	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("scripting: loading %q: %w", path, err)
	}
	if L.GetGlobal(SelectFunction).Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("scripting: %q does not define function %s", path, SelectFunction)
	}
	s.L = L
	return s, nil
}

// Select calls the script's select_category for c. engine.roll draws from src.
//
// Postcondition: Returns one of stats.Categories.
func (s *Selector) Select(c *combat.Combatant, src dice.Source) stats.Category {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.src = src
	defer func() { s.src = nil }()
	cancel := Arm(s.L, s.limit)
	defer cancel()

	if err := s.L.CallByParam(lua.P{
		Fn:      s.L.GetGlobal(SelectFunction),
		NRet:    1,
		Protect: true,
	}, s.combatantTable(c)); err != nil {
		s.logger.Warn("scripting: selection script failed, using uniform selection",
			zap.String("combatant", c.ID),
			zap.Error(err),
		)
		return s.fallback.Select(c, src)
	}

	ret := s.L.Get(-1)
	s.L.Pop(1)
	cat, err := stats.ParseCategory(lua.LVAsString(ret))
	if err != nil {
		s.logger.Warn("scripting: selection script returned an invalid category, using uniform selection",
			zap.String("combatant", c.ID),
			zap.String("returned", ret.String()),
		)
		return s.fallback.Select(c, src)
	}
	return cat
}

// Close releases the Lua VM.
func (s *Selector) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.L.Close()
}

func (s *Selector) combatantTable(c *combat.Combatant) *lua.LTable {
	L := s.L
	t := L.NewTable()
	t.RawSetString("id", lua.LString(c.ID))
	t.RawSetString("name", lua.LString(c.Name))

	base := L.NewTable()
	for _, a := range stats.All {
		base.RawSetString(a.String(), lua.LNumber(c.Base.Get(a)))
	}
	t.RawSetString("base", base)

	t.RawSetString("elements", levelTable(L, c.Elements))
	t.RawSetString("techniques", levelTable(L, c.Techniques))

	levels := L.NewTable()
	byCat := s.techniques.LevelsByCategory(c.Techniques)
	for _, cat := range stats.Categories {
		levels.RawSetString(cat.String(), lua.LNumber(byCat[cat]))
	}
	t.RawSetString("levels", levels)

	if c.Power != nil {
		power := L.NewTable()
		power.RawSetString("kind", lua.LString(c.Power.Kind))
		power.RawSetString("tier", lua.LNumber(c.Power.Tier))
		t.RawSetString("power", power)
	}
	return t
}

// levelTable inserts keys in sorted order so pairs() iterates deterministically.
func levelTable(L *lua.LState, m map[string]int) *lua.LTable {
	t := L.NewTable()
	for _, k := range slices.Sorted(maps.Keys(m)) {
		t.RawSetString(k, lua.LNumber(m[k]))
	}
	return t
}
