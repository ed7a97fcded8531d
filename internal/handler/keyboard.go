package handler

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"sticker-rank-bot/internal/rank"
)

// UpgradeButton is the callback endpoint of the buttons under /ranks.
// Button data is "<sticker>|<rank>".
var UpgradeButton = tele.Btn{Unique: "upgrade"}

var errBadCallback = errors.New("malformed upgrade callback")

// buildUpgradePanel returns one button per upgrade that can run now, or nil
// when there is none.
func buildUpgradePanel(stickerID string, options []rank.Option) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row
	for _, opt := range options {
		if !opt.CanUpgrade {
			continue
		}
		btn := markup.Data(
			fmt.Sprintf("%s → %s (-%d)", opt.FromRank.Title(), opt.TargetRank.Title(), opt.RequiredCount),
			UpgradeButton.Unique,
			stickerID, opt.TargetRank.String(),
		)
		rows = append(rows, markup.Row(btn))
	}
	if len(rows) == 0 {
		return nil
	}

	markup.Inline(rows...)
	return markup
}

// parseUpgradeCallback decodes the payload of an UpgradeButton press.
func parseUpgradeCallback(data string) (string, rank.Rank, error) {
	i := strings.LastIndex(data, "|")
	if i <= 0 {
		return "", 0, errBadCallback
	}
	target, err := rank.Parse(data[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", errBadCallback, err)
	}
	return data[:i], target, nil
}
