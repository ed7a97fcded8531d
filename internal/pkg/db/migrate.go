package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is the subset of pgxpool.Pool needed to apply migrations.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "players table",
		sql: `
			CREATE TABLE IF NOT EXISTS players (
				telegram_id BIGINT PRIMARY KEY,
				username VARCHAR(255) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		name: "stickers catalog",
		sql: `
			CREATE TABLE IF NOT EXISTS stickers (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				base_rarity SMALLINT NOT NULL CHECK (base_rarity BETWEEN 1 AND 5),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		name: "user_stickers table",
		sql: `
			CREATE TABLE IF NOT EXISTS user_stickers (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES players(telegram_id) ON DELETE CASCADE,
				sticker_id VARCHAR(64) NOT NULL,
				upgrade_rank SMALLINT NOT NULL DEFAULT 0 CHECK (upgrade_rank BETWEEN 0 AND 3),
				quantity INT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
				total_acquired BIGINT NOT NULL DEFAULT 0,
				first_acquired_at TIMESTAMPTZ,
				upgraded_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (user_id, sticker_id, upgrade_rank)
			);
			CREATE INDEX IF NOT EXISTS idx_user_stickers_user ON user_stickers(user_id);
		`,
	},
	{
		name: "sticker_upgrade_history table",
		sql: `
			CREATE TABLE IF NOT EXISTS sticker_upgrade_history (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES players(telegram_id) ON DELETE CASCADE,
				sticker_id VARCHAR(64) NOT NULL,
				from_rank SMALLINT NOT NULL CHECK (from_rank BETWEEN 0 AND 2),
				to_rank SMALLINT NOT NULL CHECK (to_rank = from_rank + 1),
				consumed_quantity INT NOT NULL CHECK (consumed_quantity > 1),
				request_id UUID NOT NULL,
				upgraded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_upgrade_history_user_time
				ON sticker_upgrade_history(user_id, upgraded_at DESC);
			CREATE INDEX IF NOT EXISTS idx_upgrade_history_sticker
				ON sticker_upgrade_history(user_id, sticker_id, upgraded_at DESC);
		`,
	},
	{
		name: "user_sticker_achievements table",
		sql: `
			CREATE TABLE IF NOT EXISTS user_sticker_achievements (
				user_id BIGINT NOT NULL REFERENCES players(telegram_id) ON DELETE CASCADE,
				sticker_id VARCHAR(64) NOT NULL,
				max_upgrade_rank SMALLINT NOT NULL DEFAULT 0 CHECK (max_upgrade_rank BETWEEN 0 AND 3),
				first_silver_at TIMESTAMPTZ,
				first_gold_at TIMESTAMPTZ,
				first_prism_at TIMESTAMPTZ,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (user_id, sticker_id)
			);
		`,
	},
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Msgf("Migration %d: %s created", i+1, m.name)
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
