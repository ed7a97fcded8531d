// Package rank implements the sticker upgrade ladder: the ordered ranks,
// the copies consumed to climb each step, and the display attributes a
// rank grants.
package rank

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Rank is a sticker's upgrade tier.
type Rank uint8

// Ranks in ladder order. Prism is terminal.
const (
	Normal Rank = iota
	Silver
	Gold
	Prism
)

// Count is the number of ranks on the ladder.
const Count = 4

// Rank-related errors.
var (
	// ErrInvalidRank is returned for a rank outside the ladder, or for
	// Normal where an upgrade target is expected.
	ErrInvalidRank = errors.New("invalid rank")
	// ErrInvalidRequirement is returned when a requirement table is incomplete
	// or a required count is not greater than one.
	ErrInvalidRequirement = errors.New("invalid rank requirement")
)

var rankNames = [Count]string{"normal", "silver", "gold", "prism"}

// All returns every rank in ascending order.
func All() []Rank {
	return []Rank{Normal, Silver, Gold, Prism}
}

// Targets returns the ranks that can be produced by an upgrade.
func Targets() []Rank {
	return []Rank{Silver, Gold, Prism}
}

// Valid reports whether r is on the ladder.
func (r Rank) Valid() bool {
	return r <= Prism
}

// String returns the lowercase rank name.
func (r Rank) String() string {
	if !r.Valid() {
		return fmt.Sprintf("rank(%d)", uint8(r))
	}
	return rankNames[r]
}

// Title returns the capitalized rank name for display.
func (r Rank) Title() string {
	s := r.String()
	if !r.Valid() {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Next returns the rank directly above r. It returns false for Prism.
func (r Rank) Next() (Rank, bool) {
	if !r.Valid() || r == Prism {
		return 0, false
	}
	return r + 1, true
}

// Prev returns the rank directly below r. It returns false for Normal.
func (r Rank) Prev() (Rank, bool) {
	if !r.Valid() || r == Normal {
		return 0, false
	}
	return r - 1, true
}

// IsMax reports whether r is the terminal rank.
func (r Rank) IsMax() bool {
	return r == Prism
}

// Compare returns a negative number when a < b, zero when equal and a
// positive number when a > b.
func Compare(a, b Rank) int {
	return int(a) - int(b)
}

// FromInt converts a stored integer (0-3) into a Rank.
func FromInt(v int) (Rank, error) {
	if v < int(Normal) || v > int(Prism) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRank, v)
	}
	return Rank(v), nil
}

// Parse accepts a rank name (case-insensitive) or its number.
func Parse(s string) (Rank, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range rankNames {
		if s == name {
			return Rank(i), nil
		}
	}
	if v, err := strconv.Atoi(s); err == nil {
		return FromInt(v)
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRank, s)
}
