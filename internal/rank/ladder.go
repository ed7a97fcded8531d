package rank

import "fmt"

// Default requirement counts: copies of the rank below consumed per upgrade.
const (
	DefaultSilverRequirement = 5
	DefaultGoldRequirement   = 2
	DefaultPrismRequirement  = 2
)

// Bonus is what a rank adds on top of a sticker's base rarity.
type Bonus struct {
	StarBonus int // added to the displayed star rating
	MarkCount int // name decoration tier
}

var defaultBonuses = [Count]Bonus{
	Normal: {StarBonus: 0, MarkCount: 0},
	Silver: {StarBonus: 1, MarkCount: 1},
	Gold:   {StarBonus: 3, MarkCount: 2},
	Prism:  {StarBonus: 5, MarkCount: 3},
}

// Ladder is the immutable game-balance configuration for upgrades.
type Ladder struct {
	required [Count]int
	bonuses  [Count]Bonus
}

// NewLadder builds a ladder from a requirement table keyed by target rank.
// The table must hold exactly Silver, Gold and Prism, each greater than one.
func NewLadder(requirements map[Rank]int) (*Ladder, error) {
	if len(requirements) != len(Targets()) {
		return nil, fmt.Errorf("%w: expected %d entries, got %d",
			ErrInvalidRequirement, len(Targets()), len(requirements))
	}

	l := &Ladder{bonuses: defaultBonuses}
	for _, target := range Targets() {
		count, ok := requirements[target]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidRequirement, target)
		}
		if count <= 1 {
			return nil, fmt.Errorf("%w: %s requires %d", ErrInvalidRequirement, target, count)
		}
		l.required[target] = count
	}
	return l, nil
}

// DefaultLadder returns the production ladder (5 / 2 / 2).
func DefaultLadder() *Ladder {
	l, err := NewLadder(map[Rank]int{
		Silver: DefaultSilverRequirement,
		Gold:   DefaultGoldRequirement,
		Prism:  DefaultPrismRequirement,
	})
	if err != nil {
		panic(err)
	}
	return l
}

// Requirement returns how many copies of the rank below target are consumed
// to produce one copy of target.
func (l *Ladder) Requirement(target Rank) (int, error) {
	if !target.Valid() || target == Normal {
		return 0, fmt.Errorf("%w: %s is not an upgrade target", ErrInvalidRank, target)
	}
	return l.required[target], nil
}

// Requirements returns a copy of the requirement table.
func (l *Ladder) Requirements() map[Rank]int {
	out := make(map[Rank]int, len(Targets()))
	for _, target := range Targets() {
		out[target] = l.required[target]
	}
	return out
}

// Bonus returns the bonus granted by r. It panics for a rank outside the
// ladder.
func (l *Ladder) Bonus(r Rank) Bonus {
	if !r.Valid() {
		panic(fmt.Sprintf("rank: bonus for invalid %s", r))
	}
	return l.bonuses[r]
}

// TotalRequired returns the cumulative number of Normal copies needed to
// reach target.
func (l *Ladder) TotalRequired(target Rank) (int, error) {
	if !target.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidRank, target)
	}
	total := 1
	for r := Silver; r <= target; r++ {
		total *= l.required[r]
	}
	return total, nil
}
