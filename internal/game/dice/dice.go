// Package dice provides the randomness abstraction used by the combat engine.
package dice

// Source is the randomness provider for attack selection.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// Weighted picks an index from weights with probability proportional to its weight.
// Non-positive weights are never picked unless every weight is non-positive, in which
// case index 0 is returned.
//
// Precondition: len(weights) > 0; src must be non-nil.
// Postcondition: Returns an index in [0, len(weights)).
func Weighted(src Source, weights []int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return 0
	}
	roll := src.Intn(total)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if roll < w {
			return i
		}
		roll -= w
	}
	return len(weights) - 1
}
