package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shinobi/internal/game/dice"
)

// registerModules installs the engine global into L:
//
//	engine.roll(n)                          -- uniform integer in [1, n] from the engagement's dice source
//	engine.log.debug|info|warn|error(msg)   -- structured log through the selector's logger
//
// source is consulted on every roll so the dice source can change between calls.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func registerModules(L *lua.LState, source func() dice.Source, logger *zap.Logger) {
	engine := L.NewTable()

	engine.RawSetString("roll", L.NewFunction(func(L *lua.LState) int {
		n := L.CheckInt(1)
		if n < 1 {
			L.ArgError(1, "sides must be >= 1")
			return 0
		}
		src := source()
		if src == nil {
			L.RaiseError("engine.roll called outside a selection")
			return 0
		}
		L.Push(lua.LNumber(src.Intn(n) + 1))
		return 1
	}))

	logTable := L.NewTable()
	for name, fn := range map[string]func(string, ...zap.Field){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
	} {
		logTable.RawSetString(name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	engine.RawSetString("log", logTable)

	L.SetGlobal("engine", engine)
}
