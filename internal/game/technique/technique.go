// Package technique defines learnable techniques. A learned technique gives an
// attack of its category a name and a description when used.
package technique

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

// Def is the static definition of a technique, loaded from YAML.
type Def struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Element     string         `yaml:"element"`
	Category    stats.Category `yaml:"category"`
	Description string         `yaml:"description"`
}

// Registry holds all known technique Defs keyed by ID.
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

// Best returns the learned technique of category cat with the highest level.
// Ties are broken by ID so the result does not depend on map order.
// Techniques with level <= 0 are not learned.
//
// Postcondition: Returns (nil, 0) when no learned technique matches cat.
func (r *Registry) Best(learned map[string]int, cat stats.Category) (*Def, int) {
	var best *Def
	bestLevel := 0
	for id, lvl := range learned {
		if lvl <= 0 {
			continue
		}
		def, ok := r.defs[id]
		if !ok || def.Category != cat {
			continue
		}
		if lvl > bestLevel || (lvl == bestLevel && def.ID < best.ID) {
			best, bestLevel = def, lvl
		}
	}
	return best, bestLevel
}

// LevelsByCategory sums learned levels per category. Unknown techniques are ignored.
func (r *Registry) LevelsByCategory(learned map[string]int) map[stats.Category]int {
	out := make(map[stats.Category]int, len(stats.Categories))
	for id, lvl := range learned {
		if lvl <= 0 {
			continue
		}
		if def, ok := r.defs[id]; ok {
			out[def.Category] = stats.SaturatingAdd(out[def.Category], min(lvl, stats.MaxLevel))
		}
	}
	return out
}

// DefaultRegistry returns the built-in technique list.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range []*Def{
		{ID: "leaf_hurricane", Name: "Leaf Hurricane", Element: "wind", Category: stats.CategoryPhysical,
			Description: "a spinning kick that sweeps the legs"},
		{ID: "primary_lotus", Name: "Primary Lotus", Element: "wind", Category: stats.CategoryPhysical,
			Description: "a falling piledriver"},
		{ID: "fireball", Name: "Great Fireball", Element: "fire", Category: stats.CategoryEnergy,
			Description: "a roaring sphere of flame"},
		{ID: "chidori", Name: "Chidori", Element: "lightning", Category: stats.CategoryEnergy,
			Description: "a lance of crackling lightning"},
		{ID: "water_dragon", Name: "Water Dragon", Element: "water", Category: stats.CategoryEnergy,
			Description: "a serpent of pressurised water"},
		{ID: "demonic_illusion", Name: "Demonic Illusion", Element: "earth", Category: stats.CategoryIllusion,
			Description: "a tree that binds the target's mind"},
		{ID: "tsukuyomi", Name: "Tsukuyomi", Element: "fire", Category: stats.CategoryIllusion,
			Description: "an eternity of torment in a single moment"},
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
		return nil, fmt.Errorf("reading technique dir %q: %w", dir, err)
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
		if def.Name == "" {
			def.Name = def.ID
		}
		reg.Register(&def)
	}
	return reg, nil
}
