package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sticker-rank-bot/internal/model"
)

// StickerRepository reads and maintains the sticker catalog.
type StickerRepository struct {
	db Querier
}

// NewStickerRepository creates a new StickerRepository instance.
func NewStickerRepository(db Querier) *StickerRepository {
	return &StickerRepository{db: db}
}

// GetByID returns a catalog entry. Returns ErrStickerNotFound if absent.
func (r *StickerRepository) GetByID(ctx context.Context, id string) (*model.Sticker, error) {
	const query = `
		SELECT id, name, base_rarity, created_at
		FROM stickers
		WHERE id = $1
	`

	var s model.Sticker
	var rarity int16
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.Name, &rarity, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStickerNotFound
		}
		return nil, fmt.Errorf("failed to get sticker: %w", err)
	}
	s.BaseRarity = int(rarity)
	return &s, nil
}

// List returns the catalog ordered by rarity, then id.
func (r *StickerRepository) List(ctx context.Context) ([]*model.Sticker, error) {
	const query = `
		SELECT id, name, base_rarity, created_at
		FROM stickers
		ORDER BY base_rarity, id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stickers: %w", err)
	}
	defer rows.Close()

	var out []*model.Sticker
	for rows.Next() {
		var s model.Sticker
		var rarity int16
		if err := rows.Scan(&s.ID, &s.Name, &rarity, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sticker: %w", err)
		}
		s.BaseRarity = int(rarity)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Upsert inserts or renames a catalog entry.
func (r *StickerRepository) Upsert(ctx context.Context, id, name string, baseRarity int) error {
	const query = `
		INSERT INTO stickers (id, name, base_rarity, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, base_rarity = EXCLUDED.base_rarity
	`
	if _, err := r.db.Exec(ctx, query, id, name, int16(baseRarity)); err != nil {
		return fmt.Errorf("failed to upsert sticker: %w", err)
	}
	return nil
}

// Count returns the catalog size.
func (r *StickerRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM stickers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count stickers: %w", err)
	}
	return n, nil
}
