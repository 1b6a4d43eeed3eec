package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers rendered notifications. The channel may be configured as a
// numeric chat id or an @username; when neither is set, channel traffic falls
// back to the admin DM so notifications are never silently dropped.
type Sender struct {
	api       API
	admin     int64
	channelID int64
	channelUN string
}

// NewSender wires a notification sender. channelID and channelUN come from
// config.ChannelTarget; at most one of them is non-zero.
func NewSender(api API, admin, channelID int64, channelUN string) *Sender {
	return &Sender{api: api, admin: admin, channelID: channelID, channelUN: channelUN}
}

// ToChannel posts a MarkdownV2 notification to the monitoring channel.
func (s *Sender) ToChannel(ctx context.Context, text string) error {
	var msg tgbotapi.MessageConfig
	switch {
	case s.channelUN != "":
		msg = tgbotapi.NewMessageToChannel(s.channelUN, text)
	case s.channelID != 0:
		msg = tgbotapi.NewMessage(s.channelID, text)
	default:
		msg = tgbotapi.NewMessage(s.admin, text)
	}
	return s.send(ctx, msg)
}

// ToAdmin posts a MarkdownV2 notification to the admin's DM.
func (s *Sender) ToAdmin(ctx context.Context, text string) error {
	return s.send(ctx, tgbotapi.NewMessage(s.admin, text))
}

func (s *Sender) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}
