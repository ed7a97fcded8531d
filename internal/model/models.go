// Package model defines the data models for the sticker rank bot.
package model

import (
	"time"

	"sticker-rank-bot/internal/rank"
)

// Player represents a Telegram user known to the game.
type Player struct {
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Sticker is a catalog entry.
type Sticker struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	BaseRarity int       `db:"base_rarity"`
	CreatedAt  time.Time `db:"created_at"`
}

// StickerHolding is how many copies of one sticker at one rank a user holds.
// There is one row per (user, sticker, rank); the row stays when the
// quantity drops back to zero.
type StickerHolding struct {
	ID              int64      `db:"id"`
	UserID          int64      `db:"user_id"`
	StickerID       string     `db:"sticker_id"`
	Rank            rank.Rank  `db:"upgrade_rank"`
	Quantity        int        `db:"quantity"`
	TotalAcquired   int64      `db:"total_acquired"`
	FirstAcquiredAt *time.Time `db:"first_acquired_at"`
	UpgradedAt      *time.Time `db:"upgraded_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// UpgradeRecord is an immutable audit entry written once per successful
// upgrade.
type UpgradeRecord struct {
	ID               int64     `db:"id"`
	UserID           int64     `db:"user_id"`
	StickerID        string    `db:"sticker_id"`
	FromRank         rank.Rank `db:"from_rank"`
	ToRank           rank.Rank `db:"to_rank"`
	ConsumedQuantity int       `db:"consumed_quantity"`
	RequestID        string    `db:"request_id"`
	UpgradedAt       time.Time `db:"upgraded_at"`
}

// StickerAchievement tracks the highest rank a user ever reached for a
// sticker and when each rank was first reached.
type StickerAchievement struct {
	UserID        int64      `db:"user_id"`
	StickerID     string     `db:"sticker_id"`
	MaxRank       rank.Rank  `db:"max_upgrade_rank"`
	FirstSilverAt *time.Time `db:"first_silver_at"`
	FirstGoldAt   *time.Time `db:"first_gold_at"`
	FirstPrismAt  *time.Time `db:"first_prism_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// RankProgress counts stickers whose best rank reached at least each tier.
type RankProgress struct {
	Silver int
	Gold   int
	Prism  int
	Total  int
}
