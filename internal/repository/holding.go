package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sticker-rank-bot/internal/model"
	"sticker-rank-bot/internal/rank"
)

const holdingColumns = `id, user_id, sticker_id, upgrade_rank, quantity, total_acquired,
	first_acquired_at, upgraded_at, created_at, updated_at`

// HoldingRepository persists per-rank sticker counts (user_stickers).
type HoldingRepository struct {
	db Querier
}

// NewHoldingRepository creates a new HoldingRepository instance.
func NewHoldingRepository(db Querier) *HoldingRepository {
	return &HoldingRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *HoldingRepository) WithTx(tx pgx.Tx) *HoldingRepository {
	return &HoldingRepository{db: tx}
}

func scanHolding(row pgx.Row) (*model.StickerHolding, error) {
	var h model.StickerHolding
	var stored int16
	err := row.Scan(
		&h.ID,
		&h.UserID,
		&h.StickerID,
		&stored,
		&h.Quantity,
		&h.TotalAcquired,
		&h.FirstAcquiredAt,
		&h.UpgradedAt,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if h.Rank, err = rank.FromInt(int(stored)); err != nil {
		return nil, err
	}
	return &h, nil
}

func collectHoldings(rows pgx.Rows) ([]*model.StickerHolding, error) {
	defer rows.Close()

	var holdings []*model.StickerHolding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// ListBySticker returns every rank row a user has for one sticker, in rank
// order, including rows at quantity zero.
func (r *HoldingRepository) ListBySticker(ctx context.Context, userID int64, stickerID string) ([]*model.StickerHolding, error) {
	const query = `
		SELECT ` + holdingColumns + `
		FROM user_stickers
		WHERE user_id = $1 AND sticker_id = $2
		ORDER BY upgrade_rank
	`
	rows, err := r.db.Query(ctx, query, userID, stickerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	return collectHoldings(rows)
}

// LockBySticker is ListBySticker with row locks held until the surrounding
// transaction ends. Rows are locked in rank order so concurrent callers
// cannot deadlock on each other. Must run inside a transaction.
func (r *HoldingRepository) LockBySticker(ctx context.Context, userID int64, stickerID string) ([]*model.StickerHolding, error) {
	const query = `
		SELECT ` + holdingColumns + `
		FROM user_stickers
		WHERE user_id = $1 AND sticker_id = $2
		ORDER BY upgrade_rank
		FOR UPDATE
	`
	rows, err := r.db.Query(ctx, query, userID, stickerID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock holdings: %w", err)
	}
	return collectHoldings(rows)
}

// ListByUser returns every holding with copies left, grouped by sticker.
func (r *HoldingRepository) ListByUser(ctx context.Context, userID int64) ([]*model.StickerHolding, error) {
	const query = `
		SELECT ` + holdingColumns + `
		FROM user_stickers
		WHERE user_id = $1 AND quantity > 0
		ORDER BY sticker_id, upgrade_rank
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection: %w", err)
	}
	return collectHoldings(rows)
}

const consumeHoldingQuery = `
	UPDATE user_stickers
	SET quantity = quantity - $4::int, updated_at = NOW()
	WHERE user_id = $1 AND sticker_id = $2 AND upgrade_rank = $3::smallint AND quantity >= $4::int
`

// Consume removes n copies at rank r. It returns false, without changing
// anything, when the row is missing or holds fewer than n copies.
func (r *HoldingRepository) Consume(ctx context.Context, userID int64, stickerID string, rk rank.Rank, n int) (bool, error) {
	result, err := r.db.Exec(ctx, consumeHoldingQuery, userID, stickerID, int16(rk), int32(n))
	if err != nil {
		return false, fmt.Errorf("failed to consume stickers: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// addHoldingQuery upserts n copies. The quantity parameter feeds both an INT
// and a BIGINT column, and the flag is read twice, so both carry explicit
// casts for Postgres parameter inference.
const addHoldingQuery = `
	INSERT INTO user_stickers (user_id, sticker_id, upgrade_rank, quantity, total_acquired,
		first_acquired_at, upgraded_at, created_at, updated_at)
	VALUES ($1, $2, $3::smallint, $4::int, $4::int, NOW(), CASE WHEN $5::boolean THEN NOW() END, NOW(), NOW())
	ON CONFLICT (user_id, sticker_id, upgrade_rank)
	DO UPDATE SET
		quantity = user_stickers.quantity + EXCLUDED.quantity,
		total_acquired = user_stickers.total_acquired + EXCLUDED.quantity,
		first_acquired_at = COALESCE(user_stickers.first_acquired_at, NOW()),
		upgraded_at = CASE WHEN $5::boolean THEN NOW() ELSE user_stickers.upgraded_at END,
		updated_at = NOW()
	RETURNING ` + holdingColumns

// Add puts n copies at rank r, creating the row on first acquisition.
// fromUpgrade stamps upgraded_at.
func (r *HoldingRepository) Add(ctx context.Context, userID int64, stickerID string, rk rank.Rank, n int, fromUpgrade bool) (*model.StickerHolding, error) {
	h, err := scanHolding(r.db.QueryRow(ctx, addHoldingQuery, userID, stickerID, int16(rk), int32(n), fromUpgrade))
	if err != nil {
		return nil, fmt.Errorf("failed to add stickers: %w", err)
	}
	return h, nil
}

// CountByRank returns the user's copies per rank for one sticker. Ranks
// without a row are absent from the map.
func (r *HoldingRepository) CountByRank(ctx context.Context, userID int64, stickerID string) (map[rank.Rank]int, error) {
	holdings, err := r.ListBySticker(ctx, userID, stickerID)
	if err != nil {
		return nil, err
	}
	counts := make(map[rank.Rank]int, len(holdings))
	for _, h := range holdings {
		counts[h.Rank] = h.Quantity
	}
	return counts, nil
}
