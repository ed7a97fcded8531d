package rank

// Star rating bounds.
const (
	MinBaseRarity = 1
	MaxBaseRarity = 5
	MaxStars      = 10
)

// Effect is the visual treatment a rank unlocks.
type Effect string

const (
	EffectNone    Effect = "none"
	EffectGlow    Effect = "glow"
	EffectSparkle Effect = "sparkle"
	EffectPrism   Effect = "prism"
)

var (
	rankSuffixes = [Count]string{"", " SR", " SSR", " UR"}
	rankEffects  = [Count]Effect{EffectNone, EffectGlow, EffectSparkle, EffectPrism}

	// exchangePoints[baseRarity-1][rank] is a sticker's trade value.
	exchangePoints = [MaxBaseRarity][Count]int{
		{5, 20, 60, 100},
		{15, 35, 80, 180},
		{50, 100, 200, 600},
		{150, 225, 450, 1200},
		{500, 750, 1250, 3000},
	}
)

func clampRarity(baseRarity int) int {
	if baseRarity < MinBaseRarity {
		return MinBaseRarity
	}
	if baseRarity > MaxBaseRarity {
		return MaxBaseRarity
	}
	return baseRarity
}

// StarCount returns the displayed star rating: base rarity plus the rank's
// star bonus, capped at MaxStars.
func (l *Ladder) StarCount(baseRarity int, r Rank) int {
	stars := clampRarity(baseRarity) + l.Bonus(r).StarBonus
	if stars > MaxStars {
		return MaxStars
	}
	return stars
}

// DecorationTier returns the number of name marks shown for r.
func (l *Ladder) DecorationTier(r Rank) int {
	return l.Bonus(r).MarkCount
}

// Suffix returns the short rarity tag appended to names at rank r.
func Suffix(r Rank) string {
	if !r.Valid() {
		return ""
	}
	return rankSuffixes[r]
}

// FormatName appends the rank suffix to a sticker name.
func FormatName(name string, r Rank) string {
	return name + Suffix(r)
}

// EffectFor returns the visual effect for r.
func EffectFor(r Rank) Effect {
	if !r.Valid() {
		return EffectNone
	}
	return rankEffects[r]
}

// Points returns the exchange value of one sticker of baseRarity at rank r.
func Points(baseRarity int, r Rank) int {
	if !r.Valid() {
		r = Prism
	}
	return exchangePoints[clampRarity(baseRarity)-1][r]
}
