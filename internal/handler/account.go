// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"sticker-rank-bot/internal/service"
)

// requestTimeout bounds the work a single command may do.
const requestTimeout = 15 * time.Second

const helpText = "Available commands:\n" +
	"/collection - your stickers\n" +
	"/ranks <sticker> - copies per rank and possible upgrades\n" +
	"/upgrade <sticker> <silver|gold|prism> - fuse copies into the next rank\n" +
	"/history - recent upgrades\n" +
	"/album - rank progress\n" +
	"/help - this message"

// AccountHandler handles registration and help.
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

func displayName(sender *tele.User) string {
	if sender.Username != "" {
		return sender.Username
	}
	return sender.FirstName
}

// HandleStart handles the /start command. First contact registers the
// player and hands out the starter pack.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	sender := c.Sender()
	if sender == nil {
		return nil
	}
	name := displayName(sender)

	_, created, err := h.accountService.EnsurePlayer(ctx, sender.ID, name)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to register player")
		return c.Reply("❌ Could not create your account, please try again later")
	}

	if created {
		return c.Reply(fmt.Sprintf("🎉 Welcome, %s!\n\nA starter pack is in your /collection.\n\n%s", name, helpText))
	}
	return c.Reply(fmt.Sprintf("👋 Welcome back, %s!\n\n%s", name, helpText))
}

// HandleHelp handles the /help command.
func (h *AccountHandler) HandleHelp(c tele.Context) error {
	return c.Reply(helpText)
}

// ensurePlayer registers the sender if needed so sticker commands work
// without /start.
func ensurePlayer(ctx context.Context, accounts *service.AccountService, sender *tele.User) error {
	_, _, err := accounts.EnsurePlayer(ctx, sender.ID, displayName(sender))
	return err
}
