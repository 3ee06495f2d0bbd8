// Package point orders replay execution points.
//
// An execution point is an opaque, totally ordered identifier for a moment in a
// recorded execution. The replay runtime encodes it as a decimal string whose
// numeric value grows with progress, so two points compare first by length and
// then lexicographically.
package point

// Comparator returns a negative number when a sorts before b, zero when they
// are the same point, and a positive number otherwise.
type Comparator func(a, b string) int

// Compare is the runtime's native point comparator.
func Compare(a, b string) int {
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Equal reports whether a and b name the same point.
func Equal(a, b string) bool { return a == b }

// Zero is the point used for messages logged before anything else is known.
const Zero = "0"
