// Package equipment defines equippable items and their flat attribute bonuses.
package equipment

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

// Item is an equippable item definition.
type Item struct {
	ID      string                  `yaml:"id" json:"id"`
	Name    string                  `yaml:"name" json:"name"`
	Slot    string                  `yaml:"slot" json:"slot,omitempty"`
	Bonuses map[stats.Attribute]int `yaml:"bonuses" json:"bonuses,omitempty"`
}

// Bonus returns the item's bonuses as an attribute block.
func (i Item) Bonus() stats.Block {
	var b stats.Block
	for a, n := range i.Bonuses {
		b.Add(a, n)
	}
	return b
}

// Sum returns the combined bonus of every item in items.
func Sum(items []Item) stats.Block {
	var total stats.Block
	for _, it := range items {
		total = total.Plus(it.Bonus())
	}
	return total
}

// Registry holds all known Items keyed by ID.
type Registry struct {
	items map[string]*Item
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Item)}
}

// Register adds item to the registry, overwriting any existing entry with the same ID.
// Precondition: item must not be nil and item.ID must not be empty.
func (r *Registry) Register(item *Item) {
	r.items[item.ID] = item
}

// Get returns the Item for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Item, bool) {
	it, ok := r.items[id]
	return it, ok
}

// All returns every registered Item sorted by ID.
func (r *Registry) All() []*Item {
	out := make([]*Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve maps item IDs to Items. Unknown IDs are returned separately so the
// caller can decide whether to log them; they never fail the lookup.
func (r *Registry) Resolve(ids []string) (items []Item, unknown []string) {
	for _, id := range ids {
		it, ok := r.items[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		items = append(items, *it)
	}
	return items, unknown
}

// DefaultRegistry returns the built-in item list.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, it := range []*Item{
		{ID: "forehead_protector", Name: "Forehead Protector", Slot: "head",
			Bonuses: map[stats.Attribute]int{stats.Vitality: 2}},
		{ID: "flak_jacket", Name: "Flak Jacket", Slot: "body",
			Bonuses: map[stats.Attribute]int{stats.Vitality: 5}},
		{ID: "kunai", Name: "Kunai", Slot: "weapon",
			Bonuses: map[stats.Attribute]int{stats.Physical: 4}},
		{ID: "chakra_blade", Name: "Chakra Blade", Slot: "weapon",
			Bonuses: map[stats.Attribute]int{stats.Physical: 3, stats.Energy: 3}},
		{ID: "seal_scroll", Name: "Sealing Scroll", Slot: "tool",
			Bonuses: map[stats.Attribute]int{stats.Seal: 5, stats.Intelligence: 1}},
		{ID: "weighted_bands", Name: "Weighted Bands", Slot: "arms",
			Bonuses: map[stats.Attribute]int{stats.Physical: 6, stats.Illusion: -2}},
	} {
		r.Register(it)
	}
	return r
}

// LoadDirectory reads every *.yaml file in dir, parses each as an Item,
// and returns a populated Registry.
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading equipment dir %q: %w", dir, err)
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
		var item Item
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if item.ID == "" {
			return nil, fmt.Errorf("parsing %q: id must not be empty", path)
		}
		reg.Register(&item)
	}
	return reg, nil
}
