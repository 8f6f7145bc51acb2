package telegram

import (
	"context"
	"fmt"

	api "github.com/OvyFlash/telegram-bot-api"
)

// Operations wraps the bot API calls the handlers need, so tests can swap in
// a recording fake.
type Operations struct {
	bot *api.BotAPI
}

func NewOperations(bot *api.BotAPI) *Operations {
	return &Operations{bot: bot}
}

func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if _, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (o *Operations) SendMessage(ctx context.Context, chatID int64, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := api.NewMessage(chatID, text)
	msg.DisableNotification = true
	if _, err := o.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (o *Operations) SendReply(ctx context.Context, chatID int64, replyToMessageID int, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := api.NewMessage(chatID, text)
	msg.ReplyParameters.MessageID = replyToMessageID
	msg.ReplyParameters.ChatID = chatID
	msg.ReplyParameters.AllowSendingWithoutReply = true
	if _, err := o.bot.Send(msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
