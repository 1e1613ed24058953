package notify

import (
	"context"
	"fmt"

	"budgetbot/internal/amqp"
	"budgetbot/internal/core"
)

// Publisher queues reminder messages on the broker.
type Publisher interface {
	PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
}

// Queue hands reminders to the broker instead of delivering them in
// process. The reminder worker consumes them and calls a Notifier.
type Queue struct {
	publisher Publisher
}

func NewQueue(p Publisher) *Queue {
	return &Queue{publisher: p}
}

func (q *Queue) Deliver(ctx context.Context, r Reminder) error {
	msg := amqp.NewReminderMessage(r.UserID, string(r.Mode), r.ChannelID, r.Text)
	if err := q.publisher.PublishReminder(ctx, msg); err != nil {
		return fmt.Errorf("queue reminder for user %s: %w", r.UserID, err)
	}
	return nil
}

// FromMessage rebuilds the reminder carried by a queued message.
func FromMessage(msg *amqp.ReminderMessage) (Reminder, error) {
	mode, err := core.ParseReminderMode(msg.Mode)
	if err != nil {
		return Reminder{}, err
	}
	return Reminder{
		UserID:    msg.UserID,
		Mode:      mode,
		ChannelID: msg.ChannelID,
		Text:      msg.Text,
	}, nil
}
