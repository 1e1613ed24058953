// Package notify delivers reminder digests to users over a chat transport.
package notify

import (
	"context"
	"errors"

	"budgetbot/internal/core"
)

// ErrUnreachable is returned when the recipient cannot be resolved or
// refuses the message.
var ErrUnreachable = errors.New("recipient unreachable")

// Reminder is one message for one user, addressed according to the user's
// reminder preference.
type Reminder struct {
	UserID    string
	Mode      core.ReminderMode
	ChannelID string
	Text      string
}

// Notifier delivers a single reminder.
type Notifier interface {
	Deliver(ctx context.Context, r Reminder) error
}

// Broadcaster posts a message to a channel that is not tied to a user.
type Broadcaster interface {
	Broadcast(ctx context.Context, channelID, text string) error
}
