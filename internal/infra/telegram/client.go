// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"errors"
	"strconv"

	"memorial_notification_service/internal/domain/channel"
	"memorial_notification_service/internal/domain/contact"
	"memorial_notification_service/internal/domain/notification"

	"gopkg.in/telebot.v3"
)

// GroupChannel delivers notifications to pre-provisioned Telegram group
// chats using gopkg.in/telebot.v3. The contact address is the numeric chat
// ID of the group. It implements channel.Sender.
type GroupChannel struct {
	bot *telebot.Bot
}

func NewGroupChannel(b *telebot.Bot) *GroupChannel {
	return &GroupChannel{bot: b}
}

func (g *GroupChannel) Kind() contact.ChannelKind { return contact.KindGroupMessage }

func (g *GroupChannel) Send(ctx context.Context, address string, payload notification.Payload) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return channel.NewPermanent("invalid group chat id", err)
	}
	if err := ctx.Err(); err != nil {
		return channel.NewTransient("context cancelled", err)
	}

	text := payload.Body
	if payload.Subject != "" {
		text = payload.Subject + "\n\n" + payload.Body
	}
	_, err = g.bot.Send(&telebot.Chat{ID: chatID}, text, &telebot.SendOptions{
		ParseMode: telebot.ModeDefault,
	})
	if err != nil {
		return classifyTelegramError(err)
	}
	return nil
}

// classifyTelegramError maps telebot failures onto the channel taxonomy.
// Flood control is transient by definition; a 4xx API error (chat not found,
// bot kicked from the group) will not heal on retry.
func classifyTelegramError(err error) error {
	var flood *telebot.FloodError
	if errors.As(err, &flood) {
		return channel.NewTransient("telegram flood control", err)
	}
	var apiErr *telebot.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
		return channel.NewPermanent("telegram rejected recipient", err)
	}
	return channel.NewTransient("telegram send failed", err)
}
