package scripting

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/shinobi/internal/game/combat"
	"github.com/cory-johannsen/shinobi/internal/game/technique"
)

// Build returns the Selector for mode. SelectionScript loads script into a
// sandbox with DefaultInstructionLimit; the built-in modes ignore script.
//
// Postcondition: Returns a non-nil Selector and a non-nil release func, or a
// non-nil error. The caller must invoke release when done.
func Build(mode combat.Selection, script string, techniques *technique.Registry, logger *zap.Logger) (combat.Selector, func(), error) {
	if mode != combat.SelectionScript {
		sel, err := combat.NewSelector(mode, techniques)
		if err != nil {
			return nil, nil, err
		}
		return sel, func() {}, nil
	}
	if script == "" {
		return nil, nil, fmt.Errorf("scripting: selection %q requires a script path", mode)
	}
	sel, err := NewSelector(script, techniques, DefaultInstructionLimit, logger)
	if err != nil {
		return nil, nil, err
	}
	return sel, sel.Close, nil
}
