package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"sticker-rank-bot/internal/model"
	"sticker-rank-bot/internal/rank"
	"sticker-rank-bot/internal/repository"
	"sticker-rank-bot/internal/service"
)

const historyLimit = 10

// Argument errors shown to the user.
var (
	errUsageRanks   = errors.New("usage: /ranks <sticker>")
	errUsageUpgrade = errors.New("usage: /upgrade <sticker> <silver|gold|prism>")
)

// catalogReader resolves sticker IDs to catalog entries.
type catalogReader interface {
	GetSticker(ctx context.Context, stickerID string) (*model.Sticker, error)
}

// StickerHandler handles collection and upgrade commands.
type StickerHandler struct {
	accountService    *service.AccountService
	upgradeService    *service.UpgradeService
	collectionService *service.CollectionService
	catalog           catalogReader
}

// NewStickerHandler creates a new StickerHandler.
func NewStickerHandler(
	accountService *service.AccountService,
	upgradeService *service.UpgradeService,
	collectionService *service.CollectionService,
) *StickerHandler {
	return &StickerHandler{
		accountService:    accountService,
		upgradeService:    upgradeService,
		collectionService: collectionService,
		catalog:           collectionService,
	}
}

// parseRanksArgs parses "/ranks <sticker>".
func parseRanksArgs(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", errUsageRanks
	}
	return strings.ToLower(strings.TrimSpace(args[0])), nil
}

// parseUpgradeArgs parses "/upgrade <sticker> <rank>".
func parseUpgradeArgs(args []string) (string, rank.Rank, error) {
	if len(args) != 2 {
		return "", 0, errUsageUpgrade
	}
	stickerID := strings.ToLower(strings.TrimSpace(args[0]))
	if stickerID == "" {
		return "", 0, errUsageUpgrade
	}
	target, err := rank.Parse(args[1])
	if err != nil {
		return "", 0, fmt.Errorf("%w (%v)", errUsageUpgrade, err)
	}
	return stickerID, target, nil
}

// begin validates the sender and registers them.
func (h *StickerHandler) begin(c tele.Context) (context.Context, context.CancelFunc, *tele.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	sender := c.Sender()
	if sender == nil {
		cancel()
		return nil, nil, nil, nil
	}
	if err := ensurePlayer(ctx, h.accountService, sender); err != nil {
		cancel()
		return nil, nil, sender, err
	}
	return ctx, cancel, sender, nil
}

const msgBusy = "⏳ Could not reach the sticker catalog, please try again"

// lookupSticker returns the catalog entry, or the reply to send instead:
// "unknown" only for a missing sticker, a retry hint for anything else.
func (h *StickerHandler) lookupSticker(ctx context.Context, stickerID string) (*model.Sticker, string) {
	s, err := h.catalog.GetSticker(ctx, stickerID)
	switch {
	case err == nil:
		return s, ""
	case errors.Is(err, repository.ErrStickerNotFound):
		return nil, fmt.Sprintf("❓ Unknown sticker %q", stickerID)
	default:
		log.Error().Err(err).Str("sticker_id", stickerID).Msg("Failed to read catalog")
		return nil, msgBusy
	}
}

// HandleRanks handles /ranks <sticker>.
func (h *StickerHandler) HandleRanks(c tele.Context) error {
	stickerID, err := parseRanksArgs(c.Args())
	if err != nil {
		return c.Reply("ℹ️ " + err.Error())
	}

	ctx, cancel, sender, err := h.begin(c)
	if err != nil {
		return c.Reply("❌ Could not load your account, please try again later")
	}
	if sender == nil {
		return nil
	}
	defer cancel()

	sticker, reply := h.lookupSticker(ctx, stickerID)
	if sticker == nil {
		return c.Reply(reply)
	}

	byRank, err := h.upgradeService.GetStickersByRank(ctx, sender.ID, stickerID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to read holdings")
		return c.Reply("❌ Could not read your stickers, please try again later")
	}
	options, err := h.upgradeService.GetAvailableUpgrades(ctx, sender.ID, stickerID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to evaluate upgrades")
		return c.Reply("❌ Could not read your stickers, please try again later")
	}

	text := formatRanks(h.upgradeService.Ladder(), sticker, byRank, options)
	if panel := buildUpgradePanel(stickerID, options); panel != nil {
		return c.Reply(text, panel)
	}
	return c.Reply(text)
}

// HandleUpgrade handles /upgrade <sticker> <rank>.
func (h *StickerHandler) HandleUpgrade(c tele.Context) error {
	stickerID, target, err := parseUpgradeArgs(c.Args())
	if err != nil {
		return c.Reply("ℹ️ " + err.Error())
	}

	ctx, cancel, sender, err := h.begin(c)
	if err != nil {
		return c.Reply("❌ Could not load your account, please try again later")
	}
	if sender == nil {
		return nil
	}
	defer cancel()

	msg, _ := h.runUpgrade(ctx, sender, stickerID, target)
	return c.Reply(msg)
}

// HandleUpgradeCallback handles the upgrade buttons under /ranks.
func (h *StickerHandler) HandleUpgradeCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}
	stickerID, target, err := parseUpgradeCallback(callback.Data)
	if err != nil {
		log.Debug().Str("data", callback.Data).Msg("Ignoring unknown callback")
		return c.Respond()
	}

	ctx, cancel, sender, err := h.begin(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Could not load your account", ShowAlert: true})
	}
	if sender == nil {
		return c.Respond()
	}
	defer cancel()

	msg, ok := h.runUpgrade(ctx, sender, stickerID, target)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: msg, ShowAlert: true})
	}
	if err := c.Respond(&tele.CallbackResponse{Text: "✨ Upgraded"}); err != nil {
		log.Warn().Err(err).Msg("Failed to answer callback")
	}
	return c.Send(msg)
}

// runUpgrade executes one upgrade and renders the reply. ok is false when
// nothing changed.
func (h *StickerHandler) runUpgrade(ctx context.Context, sender *tele.User, stickerID string, target rank.Rank) (string, bool) {
	sticker, reply := h.lookupSticker(ctx, stickerID)
	if sticker == nil {
		return reply, false
	}

	res, err := h.upgradeService.ExecuteUpgrade(ctx, sender.ID, stickerID, target)
	if err != nil {
		if service.IsTransient(err) {
			return "⏳ Your stickers are busy right now, please try again", false
		}
		return "❌ Upgrade failed, please try again later", false
	}
	return formatUpgradeResult(h.upgradeService.Ladder(), sticker, target, res), res.Success
}

// HandleHistory handles /history.
func (h *StickerHandler) HandleHistory(c tele.Context) error {
	ctx, cancel, sender, err := h.begin(c)
	if err != nil {
		return c.Reply("❌ Could not load your account, please try again later")
	}
	if sender == nil {
		return nil
	}
	defer cancel()

	records, err := h.upgradeService.GetUpgradeHistory(ctx, sender.ID, historyLimit)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to read upgrade history")
		return c.Reply("❌ Could not read your history, please try again later")
	}
	return c.Reply(formatHistory(records))
}

// HandleAlbum handles /album.
func (h *StickerHandler) HandleAlbum(c tele.Context) error {
	ctx, cancel, sender, err := h.begin(c)
	if err != nil {
		return c.Reply("❌ Could not load your account, please try again later")
	}
	if sender == nil {
		return nil
	}
	defer cancel()

	progress, err := h.upgradeService.GetRankProgress(ctx, sender.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to read rank progress")
		return c.Reply("❌ Could not read your album, please try again later")
	}
	return c.Reply(formatAlbum(progress))
}

// HandleCollection handles /collection.
func (h *StickerHandler) HandleCollection(c tele.Context) error {
	ctx, cancel, sender, err := h.begin(c)
	if err != nil {
		return c.Reply("❌ Could not load your account, please try again later")
	}
	if sender == nil {
		return nil
	}
	defer cancel()

	holdings, err := h.collectionService.ListCollection(ctx, sender.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to read collection")
		return c.Reply("❌ Could not read your collection, please try again later")
	}

	// Holdings of stickers missing from the catalog render with their ID.
	names := make(map[string]*model.Sticker)
	for _, hd := range holdings {
		if _, ok := names[hd.StickerID]; ok {
			continue
		}
		s, err := h.catalog.GetSticker(ctx, hd.StickerID)
		if err != nil && !errors.Is(err, repository.ErrStickerNotFound) {
			log.Error().Err(err).Str("sticker_id", hd.StickerID).Msg("Failed to read catalog")
			return c.Reply(msgBusy)
		}
		if s != nil {
			names[hd.StickerID] = s
		}
	}
	return c.Reply(formatCollection(h.upgradeService.Ladder(), names, holdings))
}
