package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sticker-rank-bot/internal/model"
	"sticker-rank-bot/internal/pkg/db/dbtest"
	"sticker-rank-bot/internal/rank"
)

// ============================================================================
// PlayerRepository Tests
// ============================================================================

func TestPlayerRepository_Upsert(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	p, created, err := repo.Upsert(ctx, 12345, "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(12345), p.TelegramID)
	assert.Equal(t, "alice", p.Username)

	p, created, err = repo.Upsert(ctx, 12345, "alice2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alice2", p.Username)

	got, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)
}

func TestPlayerRepository_GetByID_NotFound(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewPlayerRepository(pool)

	_, err := repo.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

// ============================================================================
// StickerRepository Tests
// ============================================================================

func TestStickerRepository_Catalog(t *testing.T) {
	pool := dbtest.Setup(t)
	repo := NewStickerRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "cat", "Cat", 3))
	require.NoError(t, repo.Upsert(ctx, "dog", "Dog", 5))
	require.NoError(t, repo.Upsert(ctx, "cat", "Sleepy Cat", 4))

	s, err := repo.GetByID(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, "Sleepy Cat", s.Name)
	assert.Equal(t, 4, s.BaseRarity)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repo.GetByID(ctx, "owl")
	assert.ErrorIs(t, err, ErrStickerNotFound)
}

// ============================================================================
// HoldingRepository Tests
// ============================================================================

func TestHoldingRepository_AddAndList(t *testing.T) {
	pool := dbtest.Setup(t)
	dbtest.SeedPlayer(t, pool, 1, "cat")
	repo := NewHoldingRepository(pool)
	ctx := context.Background()

	h, err := repo.Add(ctx, 1, "cat", rank.Normal, 3, false)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Quantity)
	assert.Equal(t, int64(3), h.TotalAcquired)
	assert.NotNil(t, h.FirstAcquiredAt)
	assert.Nil(t, h.UpgradedAt)

	h2, err := repo.Add(ctx, 1, "cat", rank.Normal, 2, false)
	require.NoError(t, err)
	assert.Equal(t, h.ID, h2.ID, "same row is reused")
	assert.Equal(t, 5, h2.Quantity)
	assert.Equal(t, int64(5), h2.TotalAcquired)

	up, err := repo.Add(ctx, 1, "cat", rank.Silver, 1, true)
	require.NoError(t, err)
	assert.NotNil(t, up.UpgradedAt)
	assert.Equal(t, int64(1), up.TotalAcquired)

	// A later plain grant keeps the upgrade stamp.
	up2, err := repo.Add(ctx, 1, "cat", rank.Silver, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 3, up2.Quantity)
	assert.Equal(t, int64(3), up2.TotalAcquired)
	require.NotNil(t, up2.UpgradedAt)
	assert.Equal(t, up.UpgradedAt.Unix(), up2.UpgradedAt.Unix())

	holdings, err := repo.ListBySticker(ctx, 1, "cat")
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, rank.Normal, holdings[0].Rank)
	assert.Equal(t, rank.Silver, holdings[1].Rank)

	counts, err := repo.CountByRank(ctx, 1, "cat")
	require.NoError(t, err)
	assert.Equal(t, map[rank.Rank]int{rank.Normal: 5, rank.Silver: 1}, counts)
}

func TestHoldingRepository_Consume(t *testing.T) {
	pool := dbtest.Setup(t)
	dbtest.SeedPlayer(t, pool, 1, "cat")
	repo := NewHoldingRepository(pool)
	ctx := context.Background()

	ok, err := repo.Consume(ctx, 1, "cat", rank.Normal, 1)
	require.NoError(t, err)
	assert.False(t, ok, "missing row cannot be consumed")

	_, err = repo.Add(ctx, 1, "cat", rank.Normal, 5, false)
	require.NoError(t, err)

	ok, err = repo.Consume(ctx, 1, "cat", rank.Normal, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Consume(ctx, 1, "cat", rank.Normal, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	holdings, err := repo.ListBySticker(ctx, 1, "cat")
	require.NoError(t, err)
	require.Len(t, holdings, 1, "row stays at zero")
	assert.Equal(t, 0, holdings[0].Quantity)

	collection, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, collection, "zero rows are hidden from the collection")
}

func TestHoldingRepository_LockBySticker_Blocks(t *testing.T) {
	pool := dbtest.Setup(t)
	dbtest.SeedPlayer(t, pool, 1, "cat")
	ctx := context.Background()
	_, err := NewHoldingRepository(pool).Add(ctx, 1, "cat", rank.Normal, 5, false)
	require.NoError(t, err)

	txm := NewTxManager(pool)
	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- txm.WithTransaction(ctx, DefaultTxOptions(), func(ctx context.Context, tx pgx.Tx) error {
			if _, err := NewHoldingRepository(pool).WithTx(tx).LockBySticker(ctx, 1, "cat"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	opts := DefaultTxOptions()
	opts.LockTimeout = 100 * time.Millisecond
	err = txm.WithTransaction(ctx, opts, func(ctx context.Context, tx pgx.Tx) error {
		_, err := NewHoldingRepository(pool).WithTx(tx).LockBySticker(ctx, 1, "cat")
		return err
	})
	require.Error(t, err)
	assert.True(t, IsLockNotAvailable(err), "expected lock_timeout error, got %v", err)

	close(release)
	require.NoError(t, <-done)
}

// ============================================================================
// HistoryRepository / AchievementRepository Tests
// ============================================================================

func TestHistoryRepository_AppendAndList(t *testing.T) {
	pool := dbtest.Setup(t)
	dbtest.SeedPlayer(t, pool, 1, "cat", "dog")
	repo := NewHistoryRepository(pool)
	ctx := context.Background()

	first := uuid.NewString()
	rec, err := repo.Append(ctx, &model.UpgradeRecord{
		UserID: 1, StickerID: "cat", FromRank: rank.Normal, ToRank: rank.Silver,
		ConsumedQuantity: 5, RequestID: first,
	})
	require.NoError(t, err)
	assert.Equal(t, first, rec.RequestID)
	assert.False(t, rec.UpgradedAt.IsZero())

	_, err = repo.Append(ctx, &model.UpgradeRecord{
		UserID: 1, StickerID: "dog", FromRank: rank.Silver, ToRank: rank.Gold,
		ConsumedQuantity: 2, RequestID: uuid.NewString(),
	})
	require.NoError(t, err)

	records, err := repo.ListByUser(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "dog", records[0].StickerID, "newest first")
	assert.Equal(t, rank.Gold, records[0].ToRank)

	n, err := repo.CountBySticker(ctx, 1, "cat")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.Append(ctx, &model.UpgradeRecord{UserID: 1, StickerID: "cat", RequestID: "nope"})
	assert.Error(t, err)
}

func TestAchievementRepository_RecordRank(t *testing.T) {
	pool := dbtest.Setup(t)
	dbtest.SeedPlayer(t, pool, 1, "cat", "dog")
	repo := NewAchievementRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.RecordRank(ctx, 1, "cat", rank.Silver), "first insert")
	require.NoError(t, repo.RecordRank(ctx, 1, "cat", rank.Gold), "upsert path")
	require.NoError(t, repo.RecordRank(ctx, 1, "cat", rank.Silver))
	require.NoError(t, repo.RecordRank(ctx, 1, "dog", rank.Silver))

	list, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "cat", list[0].StickerID)
	assert.Equal(t, rank.Gold, list[0].MaxRank, "max rank never decreases")
	assert.NotNil(t, list[0].FirstSilverAt)
	assert.NotNil(t, list[0].FirstGoldAt)
	assert.Nil(t, list[0].FirstPrismAt)

	silver, err := repo.CountAtLeast(ctx, 1, rank.Silver)
	require.NoError(t, err)
	assert.Equal(t, 2, silver)

	gold, err := repo.CountAtLeast(ctx, 1, rank.Gold)
	require.NoError(t, err)
	assert.Equal(t, 1, gold)
}

func TestTxManager_RollbackOnError(t *testing.T) {
	pool := dbtest.Setup(t)
	dbtest.SeedPlayer(t, pool, 1, "cat")
	ctx := context.Background()
	txm := NewTxManager(pool)
	boom := errors.New("boom")

	err := txm.WithTransaction(ctx, DefaultTxOptions(), func(ctx context.Context, tx pgx.Tx) error {
		if _, err := NewHoldingRepository(pool).WithTx(tx).Add(ctx, 1, "cat", rank.Normal, 5, false); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	holdings, err := NewHoldingRepository(pool).ListBySticker(ctx, 1, "cat")
	require.NoError(t, err)
	assert.Empty(t, holdings)
}
