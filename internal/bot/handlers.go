// Package bot is the Telegram command layer. It parses chat commands,
// calls the budget engine on behalf of the sender and formats replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"budgetbot/internal/core"
	"budgetbot/internal/metrics"
	"budgetbot/internal/notify"
	"budgetbot/internal/services"
)

const helpText = `Budget bot commands:
/sub add <amount> <day 1-28> <name> - add a monthly subscription
/sub list - list subscriptions
/sub pause|resume|del <id>
/pay add <amount> <YYYY-MM-DD> <name> - add an expense to pay
/pay list - list unpaid expenses
/pay done|del <id>
/bank show | /bank set|add|sub <amount>
/reminder set dm | /reminder set channel [chat id]
/reminder show
/reste - what is left to pay this month`

const throttledText = "Too many commands, please slow down."

type Handler struct {
	api      notify.Sender
	budget   *services.BudgetService
	marker   string
	notifyAt string
	now      func() time.Time
	throttle *throttle
}

type Option func(*Handler)

func WithCurrencyMarker(marker string) Option {
	return func(h *Handler) { h.marker = marker }
}

// WithNotifyTime sets the reminder time shown in /reminder replies.
func WithNotifyTime(at string) Option {
	return func(h *Handler) { h.notifyAt = at }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithRateLimit caps the commands a user may send per minute. Zero
// disables the limit.
func WithRateLimit(perMinute int) Option {
	return func(h *Handler) { h.throttle = newThrottle(perMinute, func() time.Time { return h.now() }) }
}

func NewHandler(api notify.Sender, budget *services.BudgetService, opts ...Option) *Handler {
	h := &Handler{
		api:      api,
		budget:   budget,
		marker:   core.DefaultCurrencyMarker,
		notifyAt: "08:00",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleUpdate answers one incoming message. Non-command text is ignored.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	cmd, ok := ParseCommand(msg.Text)
	if !ok {
		return
	}

	req := Request{
		UserID:      strconv.FormatInt(msg.From.ID, 10),
		ChatID:      msg.Chat.ID,
		PrivateChat: msg.Chat.IsPrivate(),
	}
	text := h.Respond(ctx, req, cmd)
	if text == "" {
		return
	}
	if _, err := h.api.Send(tgbotapi.NewMessage(msg.Chat.ID, text)); err != nil {
		slog.WarnContext(ctx, "Failed to send reply",
			"chat_id", msg.Chat.ID,
			"command", cmd.Name,
			"error", err)
	}
}

// Request identifies who sent a command and where.
type Request struct {
	UserID      string
	ChatID      int64
	PrivateChat bool
}

// Respond runs cmd for the sender and returns the reply text.
func (h *Handler) Respond(ctx context.Context, req Request, cmd Command) string {
	var (
		reply string
		err   error
	)
	if !isKnown(cmd.Name) {
		return ""
	}
	if !h.throttle.Allow(req.UserID) {
		metrics.CommandsTotal.WithLabelValues(cmd.Name, "throttled").Inc()
		return throttledText
	}
	switch cmd.Name {
	case "start", "help":
		reply = helpText
	case "sub":
		reply, err = h.handleSub(ctx, req, cmd)
	case "pay":
		reply, err = h.handlePay(ctx, req, cmd)
	case "bank":
		reply, err = h.handleBank(ctx, req, cmd)
	case "reminder":
		reply, err = h.handleReminder(ctx, req, cmd)
	case "reste":
		reply, err = h.handleRemaining(ctx, req)
	default:
		return ""
	}

	label := cmd.Name
	if cmd.Action != "" {
		label += "_" + cmd.Action
	}
	if err != nil {
		status, text := h.describeError(ctx, req, cmd, err)
		metrics.CommandsTotal.WithLabelValues(label, status).Inc()
		return text
	}
	metrics.CommandsTotal.WithLabelValues(label, "ok").Inc()
	return reply
}

func isKnown(name string) bool {
	switch name {
	case "start", "help", "reste":
		return true
	}
	return hasActions(name)
}

func (h *Handler) handleSub(ctx context.Context, req Request, cmd Command) (string, error) {
	switch cmd.Action {
	case "add":
		args, err := ParseSubscriptionArgs(cmd.Args)
		if err != nil {
			return "", err
		}
		sub, err := h.budget.AddSubscription(ctx, req.UserID, args.Name, args.Amount, args.DayOfMonth)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Subscription added: %s %s on day %d (#%d)", sub.Name, h.money(sub.Amount.Cents), sub.DayOfMonth, sub.ID), nil

	case "list":
		subs, err := h.budget.ListSubscriptions(ctx, req.UserID)
		if err != nil {
			return "", err
		}
		if len(subs) == 0 {
			return "No subscriptions.", nil
		}
		lines := []string{"Your subscriptions:"}
		for _, s := range subs {
			status := "active"
			if !s.Active {
				status = "paused"
			}
			lines = append(lines, fmt.Sprintf("#%d %s: %s on day %d (%s)", s.ID, s.Name, h.money(s.Amount.Cents), s.DayOfMonth, status))
		}
		return strings.Join(lines, "\n"), nil

	case "del":
		id, err := ParseID(cmd.Args)
		if err != nil {
			return "", err
		}
		if _, err := h.budget.DeleteSubscription(ctx, req.UserID, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("Subscription #%d deleted (if it existed).", id), nil

	case "pause", "resume":
		id, err := ParseID(cmd.Args)
		if err != nil {
			return "", err
		}
		active := cmd.Action == "resume"
		changed, err := h.budget.SetSubscriptionActive(ctx, req.UserID, id, active)
		if err != nil {
			return "", err
		}
		if !changed {
			return fmt.Sprintf("No subscription #%d.", id), nil
		}
		if active {
			return fmt.Sprintf("Subscription #%d resumed.", id), nil
		}
		return fmt.Sprintf("Subscription #%d paused.", id), nil
	}
	return "", errUsage
}

func (h *Handler) handlePay(ctx context.Context, req Request, cmd Command) (string, error) {
	switch cmd.Action {
	case "add":
		args, err := ParseExpenseArgs(cmd.Args)
		if err != nil {
			return "", err
		}
		e, err := h.budget.AddExpense(ctx, req.UserID, args.Name, args.Amount, args.DueDate)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Expense added: %s %s due %s (#%d)", e.Name, h.money(e.Amount.Cents), e.DueDate, e.ID), nil

	case "list":
		rows, err := h.budget.ListUnpaidExpenses(ctx, req.UserID)
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			return "No expenses to pay.", nil
		}
		lines := []string{"To pay:"}
		for _, e := range rows {
			lines = append(lines, fmt.Sprintf("#%d %s: %s due %s", e.ID, e.Name, h.money(e.Amount.Cents), e.DueDate))
		}
		return strings.Join(lines, "\n"), nil

	case "done":
		id, err := ParseID(cmd.Args)
		if err != nil {
			return "", err
		}
		if _, err := h.budget.MarkExpensePaid(ctx, req.UserID, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("Expense #%d marked as paid (if it existed).", id), nil

	case "del":
		id, err := ParseID(cmd.Args)
		if err != nil {
			return "", err
		}
		if _, err := h.budget.DeleteExpense(ctx, req.UserID, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("Expense #%d deleted (if it existed).", id), nil
	}
	return "", errUsage
}

func (h *Handler) handleBank(ctx context.Context, req Request, cmd Command) (string, error) {
	if cmd.Action == "" || cmd.Action == "show" {
		balance, err := h.budget.GetBalance(ctx, req.UserID)
		if err != nil {
			return "", err
		}
		return "Current balance: " + h.money(balance.Cents), nil
	}

	cents, err := ParseSignedAmount(cmd.Args)
	if err != nil {
		return "", err
	}
	switch cmd.Action {
	case "set":
		if err := h.budget.SetBalance(ctx, req.UserID, cents); err != nil {
			return "", err
		}
		return "New balance: " + h.money(cents), nil
	case "add":
		balance, err := h.budget.AddToBalance(ctx, req.UserID, cents)
		if err != nil {
			return "", err
		}
		return "Balance updated: " + h.money(balance.Cents), nil
	case "sub":
		balance, err := h.budget.SubFromBalance(ctx, req.UserID, cents)
		if err != nil {
			return "", err
		}
		return "Balance updated: " + h.money(balance.Cents), nil
	}
	return "", errUsage
}

func (h *Handler) handleReminder(ctx context.Context, req Request, cmd Command) (string, error) {
	switch cmd.Action {
	case "set":
		if len(cmd.Args) == 0 {
			return "", errUsage
		}
		channelID := ""
		if len(cmd.Args) > 1 {
			channelID = cmd.Args[1]
		} else if !req.PrivateChat {
			// "/reminder set channel" sent from a group targets that group
			channelID = strconv.FormatInt(req.ChatID, 10)
		}
		if channelID != "" {
			if _, err := notify.ParseChatID(channelID); err != nil {
				return "", core.ErrInvalidChannel
			}
		}
		pref, err := h.budget.SetReminderPref(ctx, req.UserID, cmd.Args[0], channelID)
		if err != nil {
			return "", err
		}
		return "Reminder set: " + h.describePref(pref), nil

	case "show", "":
		pref, found, err := h.budget.GetReminderPref(ctx, req.UserID)
		if err != nil {
			return "", err
		}
		if !found {
			return "No reminder configured.", nil
		}
		return "Reminder: " + h.describePref(pref), nil
	}
	return "", errUsage
}

func (h *Handler) handleRemaining(ctx context.Context, req Request) (string, error) {
	remaining, err := h.budget.RemainingForMonth(ctx, req.UserID, h.now())
	if err != nil {
		return "", err
	}
	return services.RenderRemaining(remaining, h.marker), nil
}

func (h *Handler) describePref(p core.ReminderPref) string {
	if p.Mode == core.ReminderChannel {
		return fmt.Sprintf("channel %s at %s", p.ChannelID, h.notifyAt)
	}
	return "direct message at " + h.notifyAt
}

// describeError turns an engine error into a reply and a metrics status.
// Validation problems are the user's to fix; anything else is logged.
func (h *Handler) describeError(ctx context.Context, req Request, cmd Command, err error) (string, string) {
	switch {
	case errors.Is(err, errUsage):
		return "invalid", usage(cmd)
	case errors.Is(err, core.ErrInvalidAmount):
		return "invalid", "Invalid amount. Example: 12.99"
	case errors.Is(err, core.ErrInvalidDate):
		return "invalid", "Invalid date. Expected format YYYY-MM-DD."
	case errors.Is(err, core.ErrInvalidDay):
		return "invalid", "Day of month must be between 1 and 28."
	case errors.Is(err, core.ErrEmptyName):
		return "invalid", "Name cannot be empty."
	case errors.Is(err, core.ErrInvalidMode):
		return "invalid", "Mode must be 'dm' or 'channel'."
	case errors.Is(err, core.ErrMissingChannel):
		return "invalid", "A channel is required when mode is 'channel': /reminder set channel <chat id>"
	case errors.Is(err, core.ErrInvalidChannel):
		return "invalid", "Invalid chat id. Expected a numeric Telegram chat id, e.g. -1001234567890"
	case errors.Is(err, core.ErrAmountOverflow):
		return "invalid", "That would take the balance out of range."
	}

	slog.ErrorContext(ctx, "Command failed",
		"command", cmd.Name,
		"action", cmd.Action,
		"user_id", req.UserID,
		"error", err)
	if errors.Is(err, core.ErrStorageUnavailable) {
		return "error", "Storage is unavailable, please try again later."
	}
	return "error", "Something went wrong, please try again later."
}

func usage(cmd Command) string {
	switch cmd.Name {
	case "sub":
		if cmd.Action == "add" {
			return "Usage: /sub add <amount> <day 1-28> <name>"
		}
		return "Usage: /sub add|list|pause|resume|del"
	case "pay":
		if cmd.Action == "add" {
			return "Usage: /pay add <amount> <YYYY-MM-DD> <name>"
		}
		return "Usage: /pay add|list|done|del"
	case "bank":
		return "Usage: /bank show | /bank set|add|sub <amount>"
	case "reminder":
		return "Usage: /reminder set dm | /reminder set channel [chat id] | /reminder show"
	}
	return helpText
}

func (h *Handler) money(cents int64) string {
	return core.FormatCentsWith(cents, h.marker)
}
