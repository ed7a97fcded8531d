package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sticker-rank-bot/internal/model"
	"sticker-rank-bot/internal/rank"
)

// AchievementRepository tracks the best rank reached per sticker.
type AchievementRepository struct {
	db Querier
}

// NewAchievementRepository creates a new AchievementRepository instance.
func NewAchievementRepository(db Querier) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *AchievementRepository) WithTx(tx pgx.Tx) *AchievementRepository {
	return &AchievementRepository{db: tx}
}

// recordRankQuery reads the rank parameter four times; every use is cast to
// the column type so Postgres deduces one type for it.
const recordRankQuery = `
	INSERT INTO user_sticker_achievements
		(user_id, sticker_id, max_upgrade_rank, first_silver_at, first_gold_at, first_prism_at, updated_at)
	VALUES (
		$1, $2, $3::smallint,
		CASE WHEN $3::smallint >= 1 THEN NOW() END,
		CASE WHEN $3::smallint >= 2 THEN NOW() END,
		CASE WHEN $3::smallint >= 3 THEN NOW() END,
		NOW()
	)
	ON CONFLICT (user_id, sticker_id)
	DO UPDATE SET
		max_upgrade_rank = GREATEST(user_sticker_achievements.max_upgrade_rank, EXCLUDED.max_upgrade_rank),
		first_silver_at = COALESCE(user_sticker_achievements.first_silver_at, EXCLUDED.first_silver_at),
		first_gold_at = COALESCE(user_sticker_achievements.first_gold_at, EXCLUDED.first_gold_at),
		first_prism_at = COALESCE(user_sticker_achievements.first_prism_at, EXCLUDED.first_prism_at),
		updated_at = NOW()
`

// RecordRank notes that the user reached rk on a sticker. max_upgrade_rank
// only moves up and each first_*_at is set once.
func (r *AchievementRepository) RecordRank(ctx context.Context, userID int64, stickerID string, rk rank.Rank) error {
	if _, err := r.db.Exec(ctx, recordRankQuery, userID, stickerID, int16(rk)); err != nil {
		return fmt.Errorf("failed to record achievement: %w", err)
	}
	return nil
}

// ListByUser returns the user's achievements, best first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID int64) ([]*model.StickerAchievement, error) {
	const query = `
		SELECT user_id, sticker_id, max_upgrade_rank, first_silver_at, first_gold_at, first_prism_at, updated_at
		FROM user_sticker_achievements
		WHERE user_id = $1
		ORDER BY max_upgrade_rank DESC, sticker_id
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var out []*model.StickerAchievement
	for rows.Next() {
		var a model.StickerAchievement
		var stored int16
		if err := rows.Scan(
			&a.UserID,
			&a.StickerID,
			&stored,
			&a.FirstSilverAt,
			&a.FirstGoldAt,
			&a.FirstPrismAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		if a.MaxRank, err = rank.FromInt(int(stored)); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievements: %w", err)
	}
	return out, nil
}

// CountAtLeast returns how many stickers reached rk or higher. Normal counts
// every sticker with an achievement row.
func (r *AchievementRepository) CountAtLeast(ctx context.Context, userID int64, rk rank.Rank) (int, error) {
	const query = `
		SELECT COUNT(*) FROM user_sticker_achievements
		WHERE user_id = $1 AND max_upgrade_rank >= $2
	`
	var n int
	if err := r.db.QueryRow(ctx, query, userID, int16(rk)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count achievements: %w", err)
	}
	return n, nil
}
