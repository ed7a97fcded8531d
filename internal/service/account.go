package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"sticker-rank-bot/internal/model"
	"sticker-rank-bot/internal/rank"
	"sticker-rank-bot/internal/repository"
)

// AccountService handles player registration.
type AccountService struct {
	playerRepo    *repository.PlayerRepository
	collection    *CollectionService
	starterCopies int
}

// NewAccountService creates a new AccountService instance. New players get
// starterCopies Normal copies of every catalog sticker; zero disables it.
func NewAccountService(
	playerRepo *repository.PlayerRepository,
	collection *CollectionService,
	starterCopies int,
) *AccountService {
	return &AccountService{
		playerRepo:    playerRepo,
		collection:    collection,
		starterCopies: starterCopies,
	}
}

// EnsurePlayer creates the player on first contact and keeps the username
// fresh. It returns the player and whether it was newly created.
func (s *AccountService) EnsurePlayer(ctx context.Context, telegramID int64, username string) (*model.Player, bool, error) {
	player, created, err := s.playerRepo.Upsert(ctx, telegramID, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure player: %w", err)
	}

	if created && s.starterCopies > 0 {
		if err := s.grantStarterPack(ctx, telegramID); err != nil {
			// The player exists; a missing starter pack is not fatal.
			log.Error().Err(err).Int64("user_id", telegramID).Msg("Failed to grant starter pack")
		}
	}

	return player, created, nil
}

func (s *AccountService) grantStarterPack(ctx context.Context, telegramID int64) error {
	catalog, err := s.collection.ListCatalog(ctx)
	if err != nil {
		return err
	}
	for _, sticker := range catalog {
		if _, err := s.collection.Grant(ctx, telegramID, sticker.ID, rank.Normal, s.starterCopies); err != nil {
			return err
		}
	}
	log.Info().
		Int64("user_id", telegramID).
		Int("stickers", len(catalog)).
		Int("copies", s.starterCopies).
		Msg("Starter pack granted")
	return nil
}

// GetPlayer retrieves a player by Telegram ID.
func (s *AccountService) GetPlayer(ctx context.Context, telegramID int64) (*model.Player, error) {
	return s.playerRepo.GetByID(ctx, telegramID)
}
