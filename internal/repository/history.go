package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sticker-rank-bot/internal/model"
	"sticker-rank-bot/internal/rank"
)

// DefaultHistoryLimit is used when a caller passes a non-positive limit.
const DefaultHistoryLimit = 50

// HistoryRepository persists the append-only upgrade audit log.
type HistoryRepository struct {
	db Querier
}

// NewHistoryRepository creates a new HistoryRepository instance.
func NewHistoryRepository(db Querier) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *HistoryRepository) WithTx(tx pgx.Tx) *HistoryRepository {
	return &HistoryRepository{db: tx}
}

func scanRecord(row pgx.Row) (*model.UpgradeRecord, error) {
	var rec model.UpgradeRecord
	var from, to int16
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.StickerID,
		&from,
		&to,
		&rec.ConsumedQuantity,
		&rec.RequestID,
		&rec.UpgradedAt,
	)
	if err != nil {
		return nil, err
	}
	if rec.FromRank, err = rank.FromInt(int(from)); err != nil {
		return nil, err
	}
	if rec.ToRank, err = rank.FromInt(int(to)); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Append writes one upgrade record.
func (r *HistoryRepository) Append(ctx context.Context, rec *model.UpgradeRecord) (*model.UpgradeRecord, error) {
	requestID, err := uuid.Parse(rec.RequestID)
	if err != nil {
		return nil, fmt.Errorf("invalid request id %q: %w", rec.RequestID, err)
	}

	const query = `
		INSERT INTO sticker_upgrade_history
			(user_id, sticker_id, from_rank, to_rank, consumed_quantity, request_id, upgraded_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, user_id, sticker_id, from_rank, to_rank, consumed_quantity,
			request_id::text, upgraded_at
	`
	out, err := scanRecord(r.db.QueryRow(ctx, query,
		rec.UserID,
		rec.StickerID,
		int16(rec.FromRank),
		int16(rec.ToRank),
		rec.ConsumedQuantity,
		requestID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to append upgrade record: %w", err)
	}
	return out, nil
}

// ListByUser returns a user's upgrades, newest first.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.UpgradeRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	const query = `
		SELECT id, user_id, sticker_id, from_rank, to_rank, consumed_quantity,
			request_id::text, upgraded_at
		FROM sticker_upgrade_history
		WHERE user_id = $1
		ORDER BY upgraded_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upgrade history: %w", err)
	}
	defer rows.Close()

	var records []*model.UpgradeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upgrade record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upgrade history: %w", err)
	}
	return records, nil
}

// CountBySticker returns how many upgrades a user performed on one sticker.
func (r *HistoryRepository) CountBySticker(ctx context.Context, userID int64, stickerID string) (int, error) {
	const query = `
		SELECT COUNT(*) FROM sticker_upgrade_history
		WHERE user_id = $1 AND sticker_id = $2
	`
	var n int
	if err := r.db.QueryRow(ctx, query, userID, stickerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count upgrades: %w", err)
	}
	return n, nil
}
