package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sticker-rank-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrStickerNotFound = errors.New("sticker not found")
)

// PlayerRepository handles player persistence.
type PlayerRepository struct {
	db Querier
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(db Querier) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *PlayerRepository) WithTx(tx pgx.Tx) *PlayerRepository {
	return &PlayerRepository{db: tx}
}

func scanPlayer(row pgx.Row) (*model.Player, error) {
	var p model.Player
	if err := row.Scan(&p.TelegramID, &p.Username, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a player by Telegram ID.
// Returns ErrPlayerNotFound if the player does not exist.
func (r *PlayerRepository) GetByID(ctx context.Context, telegramID int64) (*model.Player, error) {
	const query = `
		SELECT telegram_id, username, created_at, updated_at
		FROM players
		WHERE telegram_id = $1
	`

	p, err := scanPlayer(r.db.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// Upsert creates the player on first contact and refreshes the username
// otherwise. created reports whether the row was inserted.
func (r *PlayerRepository) Upsert(ctx context.Context, telegramID int64, username string) (*model.Player, bool, error) {
	// xmax is zero only for a freshly inserted tuple.
	const query = `
		INSERT INTO players (telegram_id, username, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (telegram_id)
		DO UPDATE SET username = EXCLUDED.username, updated_at = NOW()
		RETURNING telegram_id, username, created_at, updated_at, (xmax = 0) AS inserted
	`

	var p model.Player
	var inserted bool
	err := r.db.QueryRow(ctx, query, telegramID, username).Scan(
		&p.TelegramID,
		&p.Username,
		&p.CreatedAt,
		&p.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert player: %w", err)
	}
	return &p, inserted, nil
}
