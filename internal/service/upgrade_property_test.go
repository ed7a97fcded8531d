package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"sticker-rank-bot/internal/model"
	"sticker-rank-bot/internal/rank"
	"sticker-rank-bot/internal/repository"
)

// holdingSim is an in-memory set of rank rows for one (user, sticker).
type holdingSim struct {
	quantities [rank.Count]int
	history    int
}

func (h *holdingSim) snapshot() []*model.StickerHolding {
	var out []*model.StickerHolding
	for _, r := range rank.All() {
		out = append(out, &model.StickerHolding{ID: int64(r) + 1, Rank: r, Quantity: h.quantities[r]})
	}
	return out
}

// apply runs the same plan the executor runs inside its transaction.
func (h *holdingSim) apply(l *rank.Ladder, target rank.Rank) error {
	plan, err := planUpgrade(l, h.snapshot(), target)
	if err != nil {
		return err
	}
	h.quantities[plan.From] -= plan.Required
	h.quantities[plan.Target]++
	h.history++
	return nil
}

// normalEquivalent weighs each copy by the Normal copies it took to make.
func (h *holdingSim) normalEquivalent(l *rank.Ladder) int {
	total := 0
	for _, r := range rank.All() {
		w, _ := l.TotalRequired(r)
		total += h.quantities[r] * w
	}
	return total
}

func drawLadder(t *rapid.T) *rank.Ladder {
	l, err := rank.NewLadder(map[rank.Rank]int{
		rank.Silver: rapid.IntRange(2, 10).Draw(t, "silver"),
		rank.Gold:   rapid.IntRange(2, 10).Draw(t, "gold"),
		rank.Prism:  rapid.IntRange(2, 10).Draw(t, "prism"),
	})
	if err != nil {
		t.Fatalf("ladder: %v", err)
	}
	return l
}

// TestUpgradeConservationProperty checks that a successful upgrade moves
// exactly Requirement(target) copies from the rank below into one copy at
// target, that a rejected one changes nothing, and that the Normal-weighted
// total never changes.
func TestUpgradeConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := drawLadder(t)
		sim := &holdingSim{}
		for _, r := range rank.All() {
			sim.quantities[r] = rapid.IntRange(0, 60).Draw(t, "qty_"+r.String())
		}
		weight := sim.normalEquivalent(l)

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			target := rank.Rank(rapid.IntRange(0, 4).Draw(t, "target"))
			before := sim.quantities
			historyBefore := sim.history

			err := sim.apply(l, target)
			switch {
			case err == nil:
				from, _ := target.Prev()
				required, _ := l.Requirement(target)
				if sim.quantities[from] != before[from]-required {
					t.Fatalf("source %s: %d -> %d, expected -%d", from, before[from], sim.quantities[from], required)
				}
				if sim.quantities[target] != before[target]+1 {
					t.Fatalf("target %s did not gain exactly one copy", target)
				}
				if sim.history != historyBefore+1 {
					t.Fatal("successful upgrade must append exactly one record")
				}
			case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInsufficientQuantity):
				if sim.quantities != before || sim.history != historyBefore {
					t.Fatalf("rejected upgrade to %s changed state", target)
				}
			default:
				t.Fatalf("unexpected error: %v", err)
			}

			for _, r := range rank.All() {
				if sim.quantities[r] < 0 {
					t.Fatalf("quantity at %s went negative", r)
				}
			}
			if got := sim.normalEquivalent(l); got != weight {
				t.Fatalf("normal-equivalent total changed: %d -> %d", weight, got)
			}
		}
	})
}

// TestPlanUpgradeMatchesEligibilityProperty checks that planUpgrade accepts
// exactly the upgrades Evaluate reports as possible.
func TestPlanUpgradeMatchesEligibilityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := drawLadder(t)
		from := rank.Rank(rapid.IntRange(0, 2).Draw(t, "from"))
		qty := rapid.IntRange(0, 30).Draw(t, "qty")
		target, _ := from.Next()

		sim := &holdingSim{}
		sim.quantities[from] = qty

		opt, ok := l.Evaluate(from, qty)
		if !ok {
			t.Fatalf("no option for %s", from)
		}
		_, err := planUpgrade(l, sim.snapshot(), target)
		if opt.CanUpgrade != (err == nil) {
			t.Fatalf("eligibility says %v, plan error %v", opt.CanUpgrade, err)
		}
	})
}

// Whatever makes a plan fail, the result reports no new rank.
func TestRejectedUpgradeHasNoRankProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := drawLadder(t)
		sim := &holdingSim{}
		for _, r := range rank.All() {
			sim.quantities[r] = rapid.IntRange(0, 30).Draw(t, "qty")
		}
		target := rank.Rank(rapid.IntRange(0, 5).Draw(t, "target"))

		_, reason := planUpgrade(l, sim.snapshot(), target)
		if reason == nil {
			t.Skip("plan succeeded")
		}
		res := rejected(reason, "req")
		if res.Success || res.NewRank != 0 || res.Holding != nil || res.Record != nil || res.ConsumedCount != 0 {
			t.Fatalf("rejection for %s carries upgrade data: %+v", target, res)
		}
		if !errors.Is(res.Reason, reason) {
			t.Fatalf("reason %v lost, got %v", reason, res.Reason)
		}
	})
}

func TestExecuteUpgrade_InvalidTargetLeavesRankZero(t *testing.T) {
	svc := NewUpgradeService(nil, nil, nil, nil, nil, rank.DefaultLadder(), NewHoldingLock(), nil, UpgradeOptions{})

	for _, target := range []rank.Rank{rank.Normal, rank.Rank(4)} {
		res, err := svc.ExecuteUpgrade(context.Background(), 1, "cat", target)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Reason, ErrInvalidTransition)
		assert.Zero(t, res.NewRank)
		assert.NotEmpty(t, res.RequestID)
	}
}

func TestUpgradeService_TxOptions(t *testing.T) {
	svc := NewUpgradeService(nil, nil, nil, nil, nil, rank.DefaultLadder(), NewHoldingLock(), nil,
		UpgradeOptions{TxTimeout: 3 * time.Second, LockTimeout: time.Second})
	opts := svc.txOptions()
	assert.Equal(t, pgx.ReadCommitted, opts.IsoLevel)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, time.Second, opts.LockTimeout)

	svc = NewUpgradeService(nil, nil, nil, nil, nil, rank.DefaultLadder(), NewHoldingLock(), nil, UpgradeOptions{})
	assert.Equal(t, repository.DefaultTxOptions(), svc.txOptions())
}

func TestPlanUpgrade_Examples(t *testing.T) {
	l, err := rank.NewLadder(map[rank.Rank]int{rank.Silver: 5, rank.Gold: 5, rank.Prism: 10})
	require.NoError(t, err)

	normal := []*model.StickerHolding{{ID: 1, Rank: rank.Normal, Quantity: 5}}
	plan, err := planUpgrade(l, normal, rank.Silver)
	require.NoError(t, err)
	assert.Equal(t, upgradePlan{From: rank.Normal, Target: rank.Silver, Required: 5}, plan)

	gold := []*model.StickerHolding{{ID: 3, Rank: rank.Gold, Quantity: 3}}
	_, err = planUpgrade(l, gold, rank.Prism)
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	_, err = planUpgrade(l, nil, rank.Silver)
	assert.ErrorIs(t, err, ErrInsufficientQuantity, "missing source row")

	_, err = planUpgrade(l, normal, rank.Normal)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = planUpgrade(l, normal, rank.Rank(4))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRankCounts_AllRanksPresent(t *testing.T) {
	counts := rankCounts([]*model.StickerHolding{
		{ID: 7, Rank: rank.Silver, Quantity: 2},
		{ID: 9, Rank: rank.Prism, Quantity: 0},
	})
	require.Len(t, counts, rank.Count)
	assert.Equal(t, 0, counts[rank.Normal].Count)
	assert.Nil(t, counts[rank.Normal].HoldingID)
	require.NotNil(t, counts[rank.Silver].HoldingID)
	assert.Equal(t, int64(7), *counts[rank.Silver].HoldingID)
	assert.Equal(t, 2, counts[rank.Silver].Count)
	require.NotNil(t, counts[rank.Prism].HoldingID, "zero rows keep their id")
}
