package stats

import "fmt"

// Category is an offense type. Each category determines which damage formula applies.
type Category int

const (
	CategoryPhysical Category = iota
	CategoryEnergy
	CategoryIllusion
)

// Categories lists every Category in declaration order.
var Categories = []Category{CategoryPhysical, CategoryEnergy, CategoryIllusion}

// String returns the lower-case category name.
func (c Category) String() string {
	switch c {
	case CategoryPhysical:
		return "physical"
	case CategoryEnergy:
		return "energy"
	case CategoryIllusion:
		return "illusion"
	default:
		return "unknown"
	}
}

// Attribute returns the offensive attribute that powers this category.
func (c Category) Attribute() Attribute {
	switch c {
	case CategoryEnergy:
		return Energy
	case CategoryIllusion:
		return Illusion
	default:
		return Physical
	}
}

// ParseCategory resolves a lower-case category name.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown attack category %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if c < CategoryPhysical || c > CategoryIllusion {
		return nil, fmt.Errorf("unknown attack category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
