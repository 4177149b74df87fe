package combat

import (
	"fmt"

	"github.com/cory-johannsen/shinobi/internal/game/dice"
	"github.com/cory-johannsen/shinobi/internal/game/stats"
	"github.com/cory-johannsen/shinobi/internal/game/technique"
)

// Selector chooses the attack category a combatant uses on its turn.
// Implementations must always return a valid category.
type Selector interface {
	Select(c *Combatant, src dice.Source) stats.Category
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(c *Combatant, src dice.Source) stats.Category

// Select calls f.
func (f SelectorFunc) Select(c *Combatant, src dice.Source) stats.Category { return f(c, src) }

// UniformSelector picks each category with equal probability.
type UniformSelector struct{}

// Select draws one category uniformly.
//
// Postcondition: Returns one of stats.Categories.
func (UniformSelector) Select(_ *Combatant, src dice.Source) stats.Category {
	return stats.Categories[src.Intn(len(stats.Categories))]
}

// WeightedSelector favours categories the combatant has trained.
// weight(category) = 1 + sum of learned levels of techniques in that category.
type WeightedSelector struct {
	Techniques *technique.Registry
}

// Select draws one category in proportion to its weight.
//
// Postcondition: Returns one of stats.Categories.
func (w WeightedSelector) Select(c *Combatant, src dice.Source) stats.Category {
	levels := w.Techniques.LevelsByCategory(c.Techniques)
	weights := make([]int, len(stats.Categories))
	for i, cat := range stats.Categories {
		weights[i] = 1 + levels[cat]
	}
	return stats.Categories[dice.Weighted(src, weights)]
}

// Selection names a built-in selection strategy.
type Selection string

const (
	SelectionUniform  Selection = "uniform"
	SelectionWeighted Selection = "weighted"
	SelectionScript   Selection = "script"
)

// NewSelector returns the built-in Selector for mode. SelectionScript is built by
// the scripting package and is rejected here.
//
// Postcondition: Returns a non-nil Selector or a non-nil error.
func NewSelector(mode Selection, techniques *technique.Registry) (Selector, error) {
	switch mode {
	case SelectionUniform, "":
		return UniformSelector{}, nil
	case SelectionWeighted:
		return WeightedSelector{Techniques: techniques}, nil
	default:
		return nil, fmt.Errorf("unsupported built-in selection %q", mode)
	}
}
