// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"sticker-rank-bot/internal/model"
	"sticker-rank-bot/internal/pkg/lock"
	"sticker-rank-bot/internal/rank"
	"sticker-rank-bot/internal/repository"
)

// HoldingKey identifies the set of rank rows one upgrade touches.
type HoldingKey struct {
	UserID    int64
	StickerID string
}

// HoldingLock serializes in-process work on one user's copies of a sticker.
type HoldingLock = lock.KeyedLock[HoldingKey]

// NewHoldingLock creates the lock shared by every service mutating holdings.
func NewHoldingLock() *HoldingLock {
	return lock.New[HoldingKey]()
}

// UpgradeOptions tunes conflict handling.
type UpgradeOptions struct {
	MaxRetries   int
	RetryBackoff time.Duration
	LockTimeout  time.Duration
	TxTimeout    time.Duration
}

// DefaultUpgradeOptions mirrors the configuration defaults.
func DefaultUpgradeOptions() UpgradeOptions {
	return UpgradeOptions{
		MaxRetries:   3,
		RetryBackoff: 50 * time.Millisecond,
		LockTimeout:  5 * time.Second,
		TxTimeout:    10 * time.Second,
	}
}

// RankCount is a user's holding at one rank. HoldingID is nil when no row
// exists yet.
type RankCount struct {
	Count     int
	HoldingID *int64
}

// UpgradeResult is the outcome of ExecuteUpgrade. A rejected upgrade has
// Success false and Reason set; nothing was changed.
type UpgradeResult struct {
	Success       bool
	NewRank       rank.Rank
	Reason        error
	ConsumedCount int
	Holding       *model.StickerHolding
	Record        *model.UpgradeRecord
	RequestID     string
}

// rejected builds the result for an upgrade that changed nothing. NewRank
// stays zero because no copy was produced.
func rejected(reason error, requestID string) *UpgradeResult {
	return &UpgradeResult{Reason: reason, RequestID: requestID}
}

// UpgradeService fuses duplicate stickers into higher ranks.
type UpgradeService struct {
	txm          *repository.TxManager
	holdings     *repository.HoldingRepository
	history      *repository.HistoryRepository
	achievements *repository.AchievementRepository
	stickers     *repository.StickerRepository
	ladder       *rank.Ladder
	locks        *HoldingLock
	metrics      *Metrics
	opts         UpgradeOptions
}

// NewUpgradeService creates a new UpgradeService instance.
func NewUpgradeService(
	txm *repository.TxManager,
	holdings *repository.HoldingRepository,
	history *repository.HistoryRepository,
	achievements *repository.AchievementRepository,
	stickers *repository.StickerRepository,
	ladder *rank.Ladder,
	locks *HoldingLock,
	metrics *Metrics,
	opts UpgradeOptions,
) *UpgradeService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &UpgradeService{
		txm:          txm,
		holdings:     holdings,
		history:      history,
		achievements: achievements,
		stickers:     stickers,
		ladder:       ladder,
		locks:        locks,
		metrics:      metrics,
		opts:         opts,
	}
}

// Ladder returns the balance table the service enforces.
func (s *UpgradeService) Ladder() *rank.Ladder {
	return s.ladder
}

// GetStickersByRank returns the user's count at every rank for one sticker.
// All four ranks are present in the result.
func (s *UpgradeService) GetStickersByRank(ctx context.Context, userID int64, stickerID string) (map[rank.Rank]RankCount, error) {
	holdings, err := s.holdings.ListBySticker(ctx, userID, stickerID)
	if err != nil {
		return nil, err
	}
	return rankCounts(holdings), nil
}

func rankCounts(holdings []*model.StickerHolding) map[rank.Rank]RankCount {
	out := make(map[rank.Rank]RankCount, rank.Count)
	for _, r := range rank.All() {
		out[r] = RankCount{}
	}
	for _, h := range holdings {
		id := h.ID
		out[h.Rank] = RankCount{Count: h.Quantity, HoldingID: &id}
	}
	return out
}

// GetAvailableUpgrades lists the three possible upgrades for a sticker and
// whether each can run now. It takes no locks; the answer may be stale by
// the time ExecuteUpgrade runs.
func (s *UpgradeService) GetAvailableUpgrades(ctx context.Context, userID int64, stickerID string) ([]rank.Option, error) {
	counts, err := s.holdings.CountByRank(ctx, userID, stickerID)
	if err != nil {
		return nil, err
	}
	return s.ladder.EvaluateAll(counts), nil
}

// upgradePlan is a validated upgrade against a locked snapshot.
type upgradePlan struct {
	From     rank.Rank
	Target   rank.Rank
	Required int
}

// planUpgrade checks a snapshot of one sticker's holdings against the
// ladder. It returns ErrInvalidTransition or ErrInsufficientQuantity when
// the upgrade must not run.
func planUpgrade(l *rank.Ladder, holdings []*model.StickerHolding, target rank.Rank) (upgradePlan, error) {
	required, err := l.Requirement(target)
	if err != nil {
		return upgradePlan{}, ErrInvalidTransition
	}
	from, _ := target.Prev()

	have := 0
	for _, h := range holdings {
		if h.Rank == from {
			have = h.Quantity
			break
		}
	}
	if have < required {
		return upgradePlan{}, ErrInsufficientQuantity
	}
	return upgradePlan{From: from, Target: target, Required: required}, nil
}

// ExecuteUpgrade consumes the required copies at the rank below target and
// produces one copy at target, atomically. Rejections come back as a result
// with Reason set and a nil error. Errors mean the outcome could not be
// reached; IsTransient tells whether a retry may help.
//
// Once the database transaction starts it is no longer tied to ctx, so a
// caller that goes away still gets a complete commit or a full rollback.
func (s *UpgradeService) ExecuteUpgrade(ctx context.Context, userID int64, stickerID string, target rank.Rank) (*UpgradeResult, error) {
	started := time.Now()
	requestID := uuid.NewString()
	logger := log.With().
		Str("request_id", requestID).
		Int64("user_id", userID).
		Str("sticker_id", stickerID).
		Str("target_rank", target.String()).
		Logger()

	if _, err := s.ladder.Requirement(target); err != nil {
		s.metrics.observeUpgrade(outcomeInvalid, target.String(), started)
		return rejected(ErrInvalidTransition, requestID), nil
	}

	var result *UpgradeResult
	key := HoldingKey{UserID: userID, StickerID: stickerID}
	err := s.locks.WithLockContext(ctx, key, s.opts.LockTimeout, func() error {
		var err error
		result, err = s.executeWithRetry(ctx, logger, requestID, userID, stickerID, target)
		return err
	})

	switch {
	case errors.Is(err, lock.ErrLockTimeout):
		s.metrics.observeUpgrade(outcomeConflict, target.String(), started)
		logger.Warn().Msg("Upgrade gave up waiting for holding lock")
		return nil, fmt.Errorf("%w: %w", ErrUpgradeConflict, err)
	case errors.Is(err, ErrUpgradeConflict):
		s.metrics.observeUpgrade(outcomeConflict, target.String(), started)
		logger.Warn().Err(err).Msg("Upgrade retries exhausted")
		return nil, err
	case err != nil:
		s.metrics.observeUpgrade(outcomeError, target.String(), started)
		logger.Error().Err(err).Msg("Upgrade failed")
		return nil, err
	}

	if !result.Success {
		s.metrics.observeUpgrade(outcomeInsufficient, target.String(), started)
		logger.Debug().Err(result.Reason).Msg("Upgrade rejected")
		return result, nil
	}

	s.metrics.observeUpgrade(outcomeSuccess, target.String(), started)
	logger.Info().
		Int("consumed", result.ConsumedCount).
		Int("quantity", result.Holding.Quantity).
		Msg("Sticker upgraded")
	return result, nil
}

func (s *UpgradeService) executeWithRetry(
	ctx context.Context,
	logger zerolog.Logger,
	requestID string,
	userID int64,
	stickerID string,
	target rank.Rank,
) (*UpgradeResult, error) {
	var lastErr error
	attempts := s.opts.MaxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			s.metrics.retries.Inc()
			timer := time.NewTimer(time.Duration(attempt-1) * s.opts.RetryBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("%w: %w", ErrUpgradeConflict, ctx.Err())
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.attempt(ctx, requestID, userID, stickerID, target)
		if err == nil {
			return result, nil
		}
		if !isConflict(err) {
			return nil, err
		}

		lastErr = err
		logger.Warn().Err(err).Int("attempt", attempt).Msg("Upgrade conflict, retrying")
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUpgradeConflict, attempts, lastErr)
}

// txOptions starts from the repository defaults. A zero TxTimeout keeps the
// default bound.
func (s *UpgradeService) txOptions() repository.TxOptions {
	opts := repository.DefaultTxOptions()
	if s.opts.TxTimeout > 0 {
		opts.Timeout = s.opts.TxTimeout
	}
	opts.LockTimeout = s.opts.LockTimeout
	return opts
}

// attempt runs one upgrade transaction.
func (s *UpgradeService) attempt(ctx context.Context, requestID string, userID int64, stickerID string, target rank.Rank) (*UpgradeResult, error) {
	var result *UpgradeResult
	err := s.txm.WithTransaction(context.WithoutCancel(ctx), s.txOptions(), func(ctx context.Context, tx pgx.Tx) error {
		holdings := s.holdings.WithTx(tx)

		snapshot, err := holdings.LockBySticker(ctx, userID, stickerID)
		if err != nil {
			return err
		}

		plan, reason := planUpgrade(s.ladder, snapshot, target)
		if reason != nil {
			result = rejected(reason, requestID)
			return nil
		}

		ok, err := holdings.Consume(ctx, userID, stickerID, plan.From, plan.Required)
		if err != nil {
			return err
		}
		if !ok {
			return errStaleSnapshot
		}

		produced, err := holdings.Add(ctx, userID, stickerID, plan.Target, 1, true)
		if err != nil {
			return err
		}

		record, err := s.history.WithTx(tx).Append(ctx, &model.UpgradeRecord{
			UserID:           userID,
			StickerID:        stickerID,
			FromRank:         plan.From,
			ToRank:           plan.Target,
			ConsumedQuantity: plan.Required,
			RequestID:        requestID,
		})
		if err != nil {
			return err
		}

		if err := s.achievements.WithTx(tx).RecordRank(ctx, userID, stickerID, plan.Target); err != nil {
			return err
		}

		result = &UpgradeResult{
			Success:       true,
			NewRank:       plan.Target,
			ConsumedCount: plan.Required,
			Holding:       produced,
			Record:        record,
			RequestID:     requestID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetUpgradeHistory returns the user's upgrades, newest first. A
// non-positive limit uses the repository default.
func (s *UpgradeService) GetUpgradeHistory(ctx context.Context, userID int64, limit int) ([]*model.UpgradeRecord, error) {
	return s.history.ListByUser(ctx, userID, limit)
}

// GetAchievements returns the best rank reached per sticker.
func (s *UpgradeService) GetAchievements(ctx context.Context, userID int64) ([]*model.StickerAchievement, error) {
	return s.achievements.ListByUser(ctx, userID)
}

// GetPrismCount returns how many stickers the user ever took to Prism.
func (s *UpgradeService) GetPrismCount(ctx context.Context, userID int64) (int, error) {
	return s.achievements.CountAtLeast(ctx, userID, rank.Prism)
}

// GetRankProgress counts stickers that reached each rank, against the size
// of the catalog. The four counts are read concurrently.
func (s *UpgradeService) GetRankProgress(ctx context.Context, userID int64) (*model.RankProgress, error) {
	var progress model.RankProgress
	g, ctx := errgroup.WithContext(ctx)

	targets := map[rank.Rank]*int{
		rank.Silver: &progress.Silver,
		rank.Gold:   &progress.Gold,
		rank.Prism:  &progress.Prism,
	}
	for r, dst := range targets {
		r, dst := r, dst
		g.Go(func() error {
			n, err := s.achievements.CountAtLeast(ctx, userID, r)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	g.Go(func() error {
		n, err := s.stickers.Count(ctx)
		if err != nil {
			return err
		}
		progress.Total = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to get rank progress: %w", err)
	}
	return &progress, nil
}
