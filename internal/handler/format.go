package handler

import (
	"errors"
	"fmt"
	"strings"

	"sticker-rank-bot/internal/model"
	"sticker-rank-bot/internal/rank"
	"sticker-rank-bot/internal/service"
)

const divider = "━━━━━━━━━━━━━━━"

var rankIcons = map[rank.Rank]string{
	rank.Normal: "⚪",
	rank.Silver: "🥈",
	rank.Gold:   "🥇",
	rank.Prism:  "🌈",
}

func stars(n int) string {
	return strings.Repeat("★", n)
}

// decoratedName renders a sticker name with its rank suffix and marks.
func decoratedName(l *rank.Ladder, s *model.Sticker, r rank.Rank) string {
	marks := strings.Repeat("✦", l.DecorationTier(r))
	name := rank.FormatName(s.Name, r)
	if marks == "" {
		return name
	}
	return marks + " " + name + " " + marks
}

func formatRanks(l *rank.Ladder, s *model.Sticker, byRank map[rank.Rank]service.RankCount, options []rank.Option) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📒 %s\n%s\n", s.Name, divider)
	for _, r := range rank.All() {
		fmt.Fprintf(&b, "%s %-6s x%d  %s\n", rankIcons[r], r.Title(), byRank[r].Count, stars(l.StarCount(s.BaseRarity, r)))
	}
	b.WriteString(divider + "\n")
	for _, opt := range options {
		mark := "🔒"
		if opt.CanUpgrade {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s → %s: %d/%d\n", mark, opt.FromRank.Title(), opt.TargetRank.Title(), opt.CurrentCount, opt.RequiredCount)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatUpgradeResult(l *rank.Ladder, s *model.Sticker, target rank.Rank, res *service.UpgradeResult) string {
	if res.Success {
		return fmt.Sprintf(
			"✨ Upgrade complete!\n%s\n%s\n%s  (%s)\nConsumed %d copies, you now hold x%d",
			divider,
			decoratedName(l, s, res.NewRank),
			stars(l.StarCount(s.BaseRarity, res.NewRank)),
			rank.EffectFor(res.NewRank),
			res.ConsumedCount,
			res.Holding.Quantity,
		)
	}

	switch {
	case errors.Is(res.Reason, service.ErrInvalidTransition):
		return "❌ You can only upgrade to silver, gold or prism"
	case errors.Is(res.Reason, service.ErrInsufficientQuantity):
		from, _ := target.Prev()
		required, _ := l.Requirement(target)
		return fmt.Sprintf("❌ Not enough copies: %s needs %d %s copies", target.Title(), required, from.Title())
	default:
		return "❌ Upgrade not possible"
	}
}

func formatHistory(records []*model.UpgradeRecord) string {
	if len(records) == 0 {
		return "📜 No upgrades yet"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📜 Recent upgrades\n%s\n", divider)
	for _, r := range records {
		fmt.Fprintf(&b, "%s %s: %s → %s (-%d)\n",
			r.UpgradedAt.Format("01-02 15:04"), r.StickerID, r.FromRank.Title(), r.ToRank.Title(), r.ConsumedQuantity)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAlbum(p *model.RankProgress) string {
	return fmt.Sprintf(
		"📚 Album progress\n%s\n%s Silver: %d/%d\n%s Gold:   %d/%d\n%s Prism:  %d/%d\n%s",
		divider,
		rankIcons[rank.Silver], p.Silver, p.Total,
		rankIcons[rank.Gold], p.Gold, p.Total,
		rankIcons[rank.Prism], p.Prism, p.Total,
		divider,
	)
}

func formatCollection(l *rank.Ladder, stickers map[string]*model.Sticker, holdings []*model.StickerHolding) string {
	if len(holdings) == 0 {
		return "🗂 Your collection is empty"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🗂 Collection\n%s\n", divider)
	for _, h := range holdings {
		s, ok := stickers[h.StickerID]
		if !ok {
			s = &model.Sticker{ID: h.StickerID, Name: h.StickerID, BaseRarity: rank.MinBaseRarity}
		}
		fmt.Fprintf(&b, "%s %s x%d  %s\n", rankIcons[h.Rank], decoratedName(l, s, h.Rank), h.Quantity, stars(l.StarCount(s.BaseRarity, h.Rank)))
	}
	return strings.TrimRight(b.String(), "\n")
}
