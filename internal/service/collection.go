package service

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"

	"sticker-rank-bot/internal/model"
	"sticker-rank-bot/internal/rank"
	"sticker-rank-bot/internal/repository"
)

// CollectionService changes duplicate counts outside of upgrades: pulls,
// trades and grants. It takes the same per-holding lock as UpgradeService.
type CollectionService struct {
	holdings    *repository.HoldingRepository
	stickers    *repository.StickerRepository
	locks       *HoldingLock
	metrics     *Metrics
	lockTimeout time.Duration

	// catalog caches *model.Sticker by ID; SyncCatalog purges it.
	catalog *lru.Cache
}

const catalogCacheSize = 512

// NewCollectionService creates a new CollectionService instance.
func NewCollectionService(
	holdings *repository.HoldingRepository,
	stickers *repository.StickerRepository,
	locks *HoldingLock,
	metrics *Metrics,
	lockTimeout time.Duration,
) *CollectionService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	cache, _ := lru.New(catalogCacheSize)
	return &CollectionService{
		holdings:    holdings,
		stickers:    stickers,
		locks:       locks,
		metrics:     metrics,
		lockTimeout: lockTimeout,
		catalog:     cache,
	}
}

func validateMutation(r rank.Rank, n int) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %s", rank.ErrInvalidRank, r)
	}
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, n)
	}
	return nil
}

// Grant adds n copies of a catalog sticker at rank r.
func (s *CollectionService) Grant(ctx context.Context, userID int64, stickerID string, r rank.Rank, n int) (*model.StickerHolding, error) {
	if err := validateMutation(r, n); err != nil {
		return nil, err
	}
	if _, err := s.GetSticker(ctx, stickerID); err != nil {
		return nil, err
	}

	var holding *model.StickerHolding
	key := HoldingKey{UserID: userID, StickerID: stickerID}
	err := s.locks.WithLockContext(ctx, key, s.lockTimeout, func() error {
		var err error
		holding, err = s.holdings.Add(ctx, userID, stickerID, r, n, false)
		return err
	})
	s.metrics.observeCollection("grant", err)
	if err != nil {
		return nil, fmt.Errorf("failed to grant stickers: %w", err)
	}

	log.Debug().
		Int64("user_id", userID).
		Str("sticker_id", stickerID).
		Str("rank", r.String()).
		Int("count", n).
		Int("quantity", holding.Quantity).
		Msg("Stickers granted")
	return holding, nil
}

// Deduct removes n copies at rank r. It returns ErrInsufficientQuantity,
// changing nothing, when fewer than n are held.
func (s *CollectionService) Deduct(ctx context.Context, userID int64, stickerID string, r rank.Rank, n int) error {
	if err := validateMutation(r, n); err != nil {
		return err
	}

	key := HoldingKey{UserID: userID, StickerID: stickerID}
	err := s.locks.WithLockContext(ctx, key, s.lockTimeout, func() error {
		ok, err := s.holdings.Consume(ctx, userID, stickerID, r, n)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInsufficientQuantity
		}
		return nil
	})
	s.metrics.observeCollection("deduct", err)
	if err != nil {
		return fmt.Errorf("failed to deduct stickers: %w", err)
	}
	return nil
}

// ListCollection returns every holding with copies left.
func (s *CollectionService) ListCollection(ctx context.Context, userID int64) ([]*model.StickerHolding, error) {
	return s.holdings.ListByUser(ctx, userID)
}

// GetSticker returns a catalog entry.
func (s *CollectionService) GetSticker(ctx context.Context, stickerID string) (*model.Sticker, error) {
	if v, ok := s.catalog.Get(stickerID); ok {
		return v.(*model.Sticker), nil
	}
	sticker, err := s.stickers.GetByID(ctx, stickerID)
	if err != nil {
		return nil, err
	}
	s.catalog.Add(stickerID, sticker)
	return sticker, nil
}

// ListCatalog returns the whole catalog.
func (s *CollectionService) ListCatalog(ctx context.Context) ([]*model.Sticker, error) {
	return s.stickers.List(ctx)
}

// SyncCatalog inserts or updates every given catalog entry.
func (s *CollectionService) SyncCatalog(ctx context.Context, entries []model.Sticker) error {
	for _, e := range entries {
		if err := s.stickers.Upsert(ctx, e.ID, e.Name, e.BaseRarity); err != nil {
			return err
		}
	}
	s.catalog.Purge()
	log.Info().Int("stickers", len(entries)).Msg("Sticker catalog synced")
	return nil
}
