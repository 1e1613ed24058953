package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReminderMessage carries a rendered digest to the reminder worker, which
// delivers it over the chat transport.
type ReminderMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Mode      string    `json:"mode"`
	ChannelID string    `json:"channel_id,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReminderMessage creates a message with a fresh id
func NewReminderMessage(userID, mode, channelID, text string) *ReminderMessage {
	return &ReminderMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      mode,
		ChannelID: channelID,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReminderMessageFromJSON creates a message from JSON bytes
func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" || msg.Text == "" {
		return nil, errors.New("reminder message without user or text")
	}
	return &msg, nil
}
