// Package stats defines the attribute block shared by combatants, equipment and power states.
package stats

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// MaxAttribute bounds the magnitude of every attribute value and item bonus
	// accepted from callers, and caps every aggregated attribute.
	MaxAttribute = 1_000_000
	// MaxLevel bounds element and technique levels accepted from callers.
	MaxLevel = 1_000
	// MaxPool caps derived health and resource pools.
	MaxPool = math.MaxInt32
)

// Attribute identifies one of the six base attributes of a combatant.
type Attribute int

const (
	Vitality Attribute = iota
	Physical
	Energy
	Illusion
	Seal
	Intelligence
)

// All lists every Attribute in declaration order.
var All = []Attribute{Vitality, Physical, Energy, Illusion, Seal, Intelligence}

var attributeNames = map[Attribute]string{
	Vitality:     "vitality",
	Physical:     "physical",
	Energy:       "energy",
	Illusion:     "illusion",
	Seal:         "seal",
	Intelligence: "intelligence",
}

// String returns the lower-case attribute name used in content files and storage.
func (a Attribute) String() string {
	if n, ok := attributeNames[a]; ok {
		return n
	}
	return "unknown"
}

// ParseAttribute resolves a lower-case attribute name.
//
// Postcondition: Returns the matching Attribute or a non-nil error.
func ParseAttribute(name string) (Attribute, error) {
	for a, n := range attributeNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown attribute %q", name)
}

// MarshalText implements encoding.TextMarshaler so attributes can key YAML and JSON maps.
func (a Attribute) MarshalText() ([]byte, error) {
	if _, ok := attributeNames[a]; !ok {
		return nil, fmt.Errorf("unknown attribute %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Attribute) UnmarshalText(text []byte) error {
	parsed, err := ParseAttribute(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Block holds one value per Attribute.
type Block struct {
	Vitality     int `yaml:"vitality" json:"vitality"`
	Physical     int `yaml:"physical" json:"physical"`
	Energy       int `yaml:"energy" json:"energy"`
	Illusion     int `yaml:"illusion" json:"illusion"`
	Seal         int `yaml:"seal" json:"seal"`
	Intelligence int `yaml:"intelligence" json:"intelligence"`
}

func (b *Block) field(a Attribute) *int {
	switch a {
	case Vitality:
		return &b.Vitality
	case Physical:
		return &b.Physical
	case Energy:
		return &b.Energy
	case Illusion:
		return &b.Illusion
	case Seal:
		return &b.Seal
	case Intelligence:
		return &b.Intelligence
	default:
		return nil
	}
}

// Get returns the value of attribute a, or 0 for an unknown attribute.
func (b Block) Get(a Attribute) int {
	if p := b.field(a); p != nil {
		return *p
	}
	return 0
}

// Set assigns v to attribute a. Unknown attributes are ignored.
func (b *Block) Set(a Attribute, v int) {
	if p := b.field(a); p != nil {
		*p = v
	}
}

// Add increases attribute a by n, saturating at the int range. Unknown
// attributes are ignored.
func (b *Block) Add(a Attribute, n int) {
	if p := b.field(a); p != nil {
		*p = SaturatingAdd(*p, n)
	}
}

// Plus returns the attribute-wise sum of b and o.
func (b Block) Plus(o Block) Block {
	out := b
	for _, a := range All {
		out.Add(a, o.Get(a))
	}
	return out
}

// Bounded returns b with every attribute clamped to [0, MaxAttribute].
//
// Postcondition: every attribute of the result is in [0, MaxAttribute].
func (b Block) Bounded() Block {
	out := b
	for _, a := range All {
		out.Set(a, min(max(out.Get(a), 0), MaxAttribute))
	}
	return out
}

// Validate rejects attribute values whose magnitude exceeds MaxAttribute.
//
// Postcondition: Returns nil or an error naming every offending attribute.
func (b Block) Validate() error {
	var errs []string
	for _, a := range All {
		if err := CheckAttribute(a.String(), b.Get(a)); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// CheckAttribute reports an error when |v| exceeds MaxAttribute.
func CheckAttribute(name string, v int) error {
	if v < -MaxAttribute || v > MaxAttribute {
		return fmt.Errorf("%s must be within ±%d, got %d", name, MaxAttribute, v)
	}
	return nil
}

// CheckLevel reports an error when v is outside [0, MaxLevel].
func CheckLevel(name string, v int) error {
	if v < 0 || v > MaxLevel {
		return fmt.Errorf("%s level must be 0-%d, got %d", name, MaxLevel, v)
	}
	return nil
}

// SaturatingAdd returns a + b clamped to the int range.
func SaturatingAdd(a, b int) int {
	s := a + b
	switch {
	case a > 0 && b > 0 && s < 0:
		return math.MaxInt
	case a < 0 && b < 0 && s >= 0:
		return math.MinInt
	}
	return s
}

// SaturatingMul returns a × b clamped to the int range.
func SaturatingMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		if (a > 0) == (b > 0) {
			return math.MaxInt
		}
		return math.MinInt
	}
	return p
}

// Pools holds the formula constants for derived health and resource pools.
type Pools struct {
	HealthBase              int `mapstructure:"health_base"`
	HealthPerVitality       int `mapstructure:"health_per_vitality"`
	ResourceBase            int `mapstructure:"resource_base"`
	ResourcePerIntelligence int `mapstructure:"resource_per_intelligence"`
}

// DefaultPools returns the standard pool formula constants.
func DefaultPools() Pools {
	return Pools{
		HealthBase:              100,
		HealthPerVitality:       15,
		ResourceBase:            50,
		ResourcePerIntelligence: 10,
	}
}

// MaxHealth returns HealthBase + vitality × HealthPerVitality, clamped to [0, MaxPool].
func (p Pools) MaxHealth(b Block) int {
	return pool(p.HealthBase, b.Vitality, p.HealthPerVitality)
}

// MaxResource returns ResourceBase + intelligence × ResourcePerIntelligence,
// clamped to [0, MaxPool].
func (p Pools) MaxResource(b Block) int {
	return pool(p.ResourceBase, b.Intelligence, p.ResourcePerIntelligence)
}

func pool(base, attr, per int) int {
	v := SaturatingAdd(base, SaturatingMul(attr, per))
	return min(max(v, 0), MaxPool)
}
