package core

import (
	"errors"
	"strings"
	"time"
)

const (
	ReminderDM      ReminderMode = "dm"
	ReminderChannel ReminderMode = "channel"

	// MaxDayOfMonth keeps a subscription day valid in every month.
	MaxDayOfMonth = 28

	// DateLayout is the wire format for expense due dates.
	DateLayout = "2006-01-02"
)

type (
	ReminderMode string

	Money struct {
		Cents int64
	}

	Subscription struct {
		ID         int64
		UserID     string
		Name       string
		Amount     Money
		DayOfMonth int
		Active     bool
	}

	Expense struct {
		ID      int64
		UserID  string
		Name    string
		Amount  Money
		DueDate Date
		Paid    bool
	}

	ReminderPref struct {
		UserID    string
		Mode      ReminderMode
		ChannelID string // empty unless Mode == ReminderChannel
	}

	Date struct {
		time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidDay         = errors.New("day of month must be between 1 and 28")
	ErrInvalidMode        = errors.New("reminder mode must be 'dm' or 'channel'")
	ErrMissingChannel     = errors.New("a channel is required when mode is 'channel'")
	ErrInvalidChannel     = errors.New("invalid channel id")
	ErrAmountOverflow     = errors.New("amount out of range")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyUser          = errors.New("empty user id")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's wall-clock date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDueDate parses a YYYY-MM-DD date and rejects impossible calendar
// dates such as 2024-02-30.
func ParseDueDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// SameMonth reports whether d and other fall in the same calendar month.
func (d Date) SameMonth(other Date) bool {
	return d.Year() == other.Year() && d.Month() == other.Month()
}

func ParseReminderMode(s string) (ReminderMode, error) {
	switch ReminderMode(strings.ToLower(strings.TrimSpace(s))) {
	case ReminderDM:
		return ReminderDM, nil
	case ReminderChannel:
		return ReminderChannel, nil
	default:
		return "", ErrInvalidMode
	}
}

func (m Money) Validate() error {
	if m.Cents < 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if len(s.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if s.DayOfMonth < 1 || s.DayOfMonth > MaxDayOfMonth {
		return ErrInvalidDay
	}
	return s.Amount.Validate()
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if e.DueDate.IsZero() {
		return ErrInvalidDate
	}
	return e.Amount.Validate()
}

func (p ReminderPref) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrEmptyUser
	}
	switch p.Mode {
	case ReminderDM:
		return nil
	case ReminderChannel:
		if strings.TrimSpace(p.ChannelID) == "" {
			return ErrMissingChannel
		}
		return nil
	default:
		return ErrInvalidMode
	}
}
