package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"budgetbot/internal/core"
)

// Sender is the part of *tgbotapi.BotAPI used to post messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers reminders through the Telegram Bot API. Direct messages
// go to the private chat whose id equals the user id; channel reminders go
// to the configured chat and start with a mention of the user.
type Telegram struct {
	api Sender
}

func NewTelegram(api Sender) *Telegram {
	return &Telegram{api: api}
}

func (t *Telegram) Deliver(ctx context.Context, r Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch r.Mode {
	case core.ReminderDM:
		chatID, err := ParseChatID(r.UserID)
		if err != nil {
			return err
		}
		return t.send(tgbotapi.NewMessage(chatID, r.Text))

	case core.ReminderChannel:
		chatID, err := ParseChatID(r.ChannelID)
		if err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, mention(r.UserID)+"\n"+html.EscapeString(r.Text))
		msg.ParseMode = tgbotapi.ModeHTML
		return t.send(msg)
	}
	return fmt.Errorf("deliver to user %s: %w", r.UserID, core.ErrInvalidMode)
}

// Broadcast posts text to a channel without addressing a user.
func (t *Telegram) Broadcast(ctx context.Context, channelID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := ParseChatID(channelID)
	if err != nil {
		return err
	}
	return t.send(tgbotapi.NewMessage(chatID, text))
}

func (t *Telegram) send(msg tgbotapi.MessageConfig) error {
	if _, err := t.api.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusBadRequest) {
			return fmt.Errorf("%w: chat %d: %s", ErrUnreachable, msg.ChatID, apiErr.Message)
		}
		return fmt.Errorf("send to chat %d: %w", msg.ChatID, err)
	}
	return nil
}

// ParseChatID converts a stored user or channel id to a Telegram chat id.
func ParseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid chat id %q", ErrUnreachable, s)
	}
	return id, nil
}

func mention(userID string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%s">@%s</a>`, html.EscapeString(userID), html.EscapeString(userID))
}
