// Package content bundles the static game registries consumed by the combat engine.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cory-johannsen/shinobi/internal/game/element"
	"github.com/cory-johannsen/shinobi/internal/game/equipment"
	"github.com/cory-johannsen/shinobi/internal/game/powerstate"
	"github.com/cory-johannsen/shinobi/internal/game/technique"
)

// Content holds every registry the engine reads from.
type Content struct {
	Elements    *element.Registry
	Techniques  *technique.Registry
	Equipment   *equipment.Registry
	PowerStates *powerstate.Registry
}

// Default returns the built-in registries.
func Default() *Content {
	return &Content{
		Elements:    element.DefaultRegistry(),
		Techniques:  technique.DefaultRegistry(),
		Equipment:   equipment.DefaultRegistry(),
		PowerStates: powerstate.DefaultRegistry(),
	}
}

// Load reads the elements/, techniques/, equipment/ and powerstates/ subdirectories
// of dir. A missing subdirectory keeps the built-in registry for that kind.
// An empty dir returns Default().
//
// Postcondition: Returns a fully populated Content or a non-nil error.
func Load(dir string) (*Content, error) {
	c := Default()
	if dir == "" {
		return c, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("content dir %q: %w", dir, err)
	}

	if err := loadInto(filepath.Join(dir, "elements"), element.LoadDirectory, &c.Elements); err != nil {
		return nil, err
	}
	if err := loadInto(filepath.Join(dir, "techniques"), technique.LoadDirectory, &c.Techniques); err != nil {
		return nil, err
	}
	if err := loadInto(filepath.Join(dir, "equipment"), equipment.LoadDirectory, &c.Equipment); err != nil {
		return nil, err
	}
	if err := loadInto(filepath.Join(dir, "powerstates"), powerstate.LoadDirectory, &c.PowerStates); err != nil {
		return nil, err
	}
	return c, nil
}

func loadInto[R any](dir string, load func(string) (R, error), dst *R) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	reg, err := load(dir)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}
	*dst = reg
	return nil
}
