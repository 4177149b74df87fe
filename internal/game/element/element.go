// Package element defines elemental affinities and the per-level attribute bonus each grants.
package element

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/shinobi/internal/game/stats"
)

// Def is the static definition of an element, loaded from YAML.
type Def struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Bonus    stats.Attribute `yaml:"bonus"`     // attribute boosted by affinity levels
	PerLevel int             `yaml:"per_level"` // flat bonus per affinity level
}

// Registry holds all known element Defs keyed by ID.
type Registry struct {
	defs map[string]*Def
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Def)}
}

// Register adds def to the registry, overwriting any existing entry with the same ID.
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *Def) {
	r.defs[def.ID] = def
}

// Get returns the Def for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Def, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns every registered Def sorted by ID.
func (r *Registry) All() []*Def {
	out := make([]*Def, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Bonuses returns the attribute bonuses granted by the given affinity levels.
// Unknown elements and non-positive levels contribute nothing.
//
// Postcondition: every attribute of the result is >= 0 when every PerLevel is >= 0.
func (r *Registry) Bonuses(levels map[string]int) stats.Block {
	var out stats.Block
	for id, lvl := range levels {
		if lvl <= 0 {
			continue
		}
		def, ok := r.defs[id]
		if !ok {
			continue
		}
		out.Add(def.Bonus, stats.SaturatingMul(lvl, def.PerLevel))
	}
	return out
}

// DefaultRegistry returns the built-in five elements.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range []*Def{
		{ID: "wind", Name: "Wind", Bonus: stats.Physical, PerLevel: 2},
		{ID: "fire", Name: "Fire", Bonus: stats.Energy, PerLevel: 2},
		{ID: "lightning", Name: "Lightning", Bonus: stats.Seal, PerLevel: 1},
		{ID: "water", Name: "Water", Bonus: stats.Intelligence, PerLevel: 2},
		{ID: "earth", Name: "Earth", Bonus: stats.Vitality, PerLevel: 2},
	} {
		r.Register(d)
	}
	return r
}

// LoadDirectory reads every *.yaml file in dir, parses each as a Def,
// and returns a populated Registry.
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading element dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def Def
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if def.ID == "" {
			return nil, fmt.Errorf("parsing %q: id must not be empty", path)
		}
		reg.Register(&def)
	}
	return reg, nil
}
