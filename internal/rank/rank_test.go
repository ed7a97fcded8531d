package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name string
		in   Rank
		want Rank
		ok   bool
	}{
		{"normal to silver", Normal, Silver, true},
		{"silver to gold", Silver, Gold, true},
		{"gold to prism", Gold, Prism, true},
		{"prism is terminal", Prism, 0, false},
		{"out of range", Rank(9), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.Next()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrev(t *testing.T) {
	_, ok := Normal.Prev()
	assert.False(t, ok)

	r, ok := Prism.Prev()
	require.True(t, ok)
	assert.Equal(t, Gold, r)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Rank
		wantErr bool
	}{
		{"normal", Normal, false},
		{"Silver", Silver, false},
		{" GOLD ", Gold, false},
		{"prism", Prism, false},
		{"2", Gold, false},
		{"0", Normal, false},
		{"4", 0, true},
		{"-1", 0, true},
		{"diamond", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRank)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringAndTitle(t *testing.T) {
	assert.Equal(t, "gold", Gold.String())
	assert.Equal(t, "Prism", Prism.Title())
	assert.Equal(t, "rank(7)", Rank(7).String())
}

func TestNewLadder_Validation(t *testing.T) {
	_, err := NewLadder(map[Rank]int{Silver: 5, Gold: 5})
	assert.ErrorIs(t, err, ErrInvalidRequirement)

	_, err = NewLadder(map[Rank]int{Silver: 5, Gold: 1, Prism: 10})
	assert.ErrorIs(t, err, ErrInvalidRequirement)

	_, err = NewLadder(map[Rank]int{Normal: 2, Silver: 5, Gold: 5})
	assert.ErrorIs(t, err, ErrInvalidRequirement)

	l, err := NewLadder(map[Rank]int{Silver: 5, Gold: 5, Prism: 10})
	require.NoError(t, err)
	assert.Equal(t, map[Rank]int{Silver: 5, Gold: 5, Prism: 10}, l.Requirements())
}

func TestLadder_Requirement(t *testing.T) {
	l := DefaultLadder()

	n, err := l.Requirement(Silver)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = l.Requirement(Prism)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = l.Requirement(Normal)
	assert.ErrorIs(t, err, ErrInvalidRank)

	_, err = l.Requirement(Rank(4))
	assert.ErrorIs(t, err, ErrInvalidRank)
}

func TestLadder_TotalRequired(t *testing.T) {
	l := DefaultLadder()
	want := map[Rank]int{Normal: 1, Silver: 5, Gold: 10, Prism: 20}
	for r, n := range want {
		got, err := l.TotalRequired(r)
		require.NoError(t, err)
		assert.Equal(t, n, got, r.String())
	}
}

func TestLadder_BonusPanicsOnInvalidRank(t *testing.T) {
	assert.Panics(t, func() { DefaultLadder().Bonus(Rank(4)) })
}

func TestEvaluate_Examples(t *testing.T) {
	l, err := NewLadder(map[Rank]int{Silver: 5, Gold: 5, Prism: 10})
	require.NoError(t, err)

	opt, ok := l.Evaluate(Normal, 5)
	require.True(t, ok)
	assert.Equal(t, Option{
		TargetRank:    Silver,
		FromRank:      Normal,
		RequiredCount: 5,
		CurrentCount:  5,
		CanUpgrade:    true,
	}, opt)

	opt, ok = l.Evaluate(Gold, 3)
	require.True(t, ok)
	assert.Equal(t, Prism, opt.TargetRank)
	assert.False(t, opt.CanUpgrade)

	opt, ok = l.Evaluate(Silver, 0)
	require.True(t, ok)
	assert.False(t, opt.CanUpgrade)

	_, ok = l.Evaluate(Prism, 100)
	assert.False(t, ok)
}

func TestEvaluateAll(t *testing.T) {
	l := DefaultLadder()

	options := l.EvaluateAll(map[Rank]int{Normal: 7, Gold: 1, Prism: 3})
	require.Len(t, options, 3)

	assert.Equal(t, Silver, options[0].TargetRank)
	assert.Equal(t, 7, options[0].CurrentCount)
	assert.True(t, options[0].CanUpgrade)

	assert.Equal(t, Gold, options[1].TargetRank)
	assert.Equal(t, 0, options[1].CurrentCount)
	assert.False(t, options[1].CanUpgrade)

	assert.Equal(t, Prism, options[2].TargetRank)
	assert.Equal(t, Gold, options[2].FromRank)
	assert.False(t, options[2].CanUpgrade)
}

func TestStarCount(t *testing.T) {
	l := DefaultLadder()

	assert.Equal(t, 1, l.StarCount(1, Normal))
	assert.Equal(t, 4, l.StarCount(3, Silver))
	assert.Equal(t, 7, l.StarCount(4, Gold))
	assert.Equal(t, 10, l.StarCount(5, Prism))
	assert.Equal(t, 1, l.StarCount(0, Normal), "rarity below range is clamped")
	assert.Equal(t, 10, l.StarCount(9, Prism), "rarity above range is clamped")
}

func TestDisplayHelpers(t *testing.T) {
	l := DefaultLadder()

	assert.Equal(t, 0, l.DecorationTier(Normal))
	assert.Equal(t, 3, l.DecorationTier(Prism))
	assert.Equal(t, "Cat", FormatName("Cat", Normal))
	assert.Equal(t, "Cat SSR", FormatName("Cat", Gold))
	assert.Equal(t, EffectSparkle, EffectFor(Gold))
	assert.Equal(t, 100, Points(1, Prism))
	assert.Equal(t, 3000, Points(5, Prism))
	assert.Equal(t, 5, Points(0, Normal))
}
