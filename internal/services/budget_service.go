package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"budgetbot/internal/core"
)

// Ledger is the storage the accounting engine runs on.
type Ledger interface {
	CreateSubscription(ctx context.Context, s core.Subscription) (int64, error)
	ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error)
	ListActiveSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error)
	SetSubscriptionActive(ctx context.Context, userID string, id int64, active bool) (bool, error)
	DeleteSubscription(ctx context.Context, userID string, id int64) (bool, error)

	CreateExpense(ctx context.Context, e core.Expense) (int64, error)
	ListUnpaidExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	ListUnpaidExpensesBetween(ctx context.Context, userID string, from, to core.Date) ([]core.Expense, error)
	MarkExpensePaid(ctx context.Context, userID string, id int64) (bool, error)
	DeleteExpense(ctx context.Context, userID string, id int64) (bool, error)

	GetBalance(ctx context.Context, userID string) (int64, error)
	SetBalance(ctx context.Context, userID string, cents int64) error
	AddToBalance(ctx context.Context, userID string, delta int64) (int64, error)
	ApplyDueSubscriptions(ctx context.Context, day int) ([]core.Charge, error)

	UpsertReminderPref(ctx context.Context, p core.ReminderPref) error
	GetReminderPref(ctx context.Context, userID string) (core.ReminderPref, bool, error)
	ListReminderPrefs(ctx context.Context) ([]core.ReminderPref, error)
}

// BudgetService is the accounting engine: subscriptions, expenses, balance
// and the "remaining this month" computation. Every operation is scoped to
// the calling user.
type BudgetService struct {
	ledger Ledger
	now    func() time.Time
}

func NewBudgetService(ledger Ledger) *BudgetService {
	return &BudgetService{
		ledger: ledger,
		now:    time.Now,
	}
}

// WithClock replaces the wall clock used by ApplyDueSubscriptionsForToday.
func (s *BudgetService) WithClock(now func() time.Time) *BudgetService {
	s.now = now
	return s
}

func (s *BudgetService) AddSubscription(ctx context.Context, userID, name string, amount core.Money, dayOfMonth int) (core.Subscription, error) {
	sub := core.Subscription{
		UserID:     userID,
		Name:       strings.TrimSpace(name),
		Amount:     amount,
		DayOfMonth: dayOfMonth,
		Active:     true,
	}
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}
	if err := s.ready(); err != nil {
		return core.Subscription{}, err
	}

	id, err := s.ledger.CreateSubscription(ctx, sub)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("add subscription: %w", err)
	}
	sub.ID = id
	return sub, nil
}

// ListSubscriptions returns active and paused subscriptions ordered by
// (day_of_month, name).
func (s *BudgetService) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ledger.ListSubscriptions(ctx, userID)
}

// DeleteSubscription removes a subscription if it exists and is owned by
// userID. Missing or foreign ids are not an error; the boolean says whether
// anything was removed.
func (s *BudgetService) DeleteSubscription(ctx context.Context, userID string, id int64) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.ledger.DeleteSubscription(ctx, userID, id)
}

// SetSubscriptionActive pauses or resumes a subscription. Paused
// subscriptions are neither charged nor counted as remaining.
func (s *BudgetService) SetSubscriptionActive(ctx context.Context, userID string, id int64, active bool) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.ledger.SetSubscriptionActive(ctx, userID, id, active)
}

func (s *BudgetService) AddExpense(ctx context.Context, userID, name string, amount core.Money, dueDate core.Date) (core.Expense, error) {
	e := core.Expense{
		UserID:  userID,
		Name:    strings.TrimSpace(name),
		Amount:  amount,
		DueDate: dueDate,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.ready(); err != nil {
		return core.Expense{}, err
	}

	id, err := s.ledger.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	e.ID = id
	return e, nil
}

// ListUnpaidExpenses returns unpaid expenses ordered by (due_date, name).
func (s *BudgetService) ListUnpaidExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ledger.ListUnpaidExpenses(ctx, userID)
}

func (s *BudgetService) MarkExpensePaid(ctx context.Context, userID string, id int64) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.ledger.MarkExpensePaid(ctx, userID, id)
}

func (s *BudgetService) DeleteExpense(ctx context.Context, userID string, id int64) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.ledger.DeleteExpense(ctx, userID, id)
}

func (s *BudgetService) GetBalance(ctx context.Context, userID string) (core.Money, error) {
	if err := s.ready(); err != nil {
		return core.Money{}, err
	}
	cents, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

func (s *BudgetService) SetBalance(ctx context.Context, userID string, cents int64) error {
	if err := checkBalanceAmount(cents); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.ledger.SetBalance(ctx, userID, cents); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Balance set", "user_id", userID, "balance_cents", cents)
	return nil
}

// AddToBalance adds delta cents and returns the resulting balance. A sum
// that would leave the int64 range fails with core.ErrAmountOverflow and
// leaves the balance untouched.
func (s *BudgetService) AddToBalance(ctx context.Context, userID string, delta int64) (core.Money, error) {
	if err := checkBalanceAmount(delta); err != nil {
		return core.Money{}, err
	}
	if err := s.ready(); err != nil {
		return core.Money{}, err
	}
	cents, err := s.ledger.AddToBalance(ctx, userID, delta)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// SubFromBalance subtracts delta cents and returns the resulting balance.
// A user without a balance ends up at -delta.
func (s *BudgetService) SubFromBalance(ctx context.Context, userID string, delta int64) (core.Money, error) {
	if err := checkBalanceAmount(delta); err != nil {
		return core.Money{}, err
	}
	return s.AddToBalance(ctx, userID, -delta)
}

// checkBalanceAmount keeps balance inputs within what ParseAmount accepts,
// which also makes negating them safe.
func checkBalanceAmount(cents int64) error {
	if cents < -core.MaxAmountCents || cents > core.MaxAmountCents {
		return core.ErrInvalidAmount
	}
	return nil
}

// RemainingForMonth returns what is still due in today's calendar month:
// active subscriptions with day_of_month >= today's day, and unpaid expenses
// due between today and the end of the month.
//
// A subscription billed on day 28 is excluded from day 29 onwards even
// though it has not been billed again yet; the day of month is the only
// "still pending" signal.
func (s *BudgetService) RemainingForMonth(ctx context.Context, userID string, today time.Time) (core.RemainingMonth, error) {
	if err := s.ready(); err != nil {
		return core.RemainingMonth{}, err
	}

	subs, err := s.ledger.ListActiveSubscriptions(ctx, userID)
	if err != nil {
		return core.RemainingMonth{}, fmt.Errorf("remaining for month: %w", err)
	}
	var subsDue []core.Subscription
	for _, sub := range subs {
		if sub.Active && sub.DayOfMonth >= today.Day() {
			subsDue = append(subsDue, sub)
		}
	}

	from := core.DateOf(today)
	to := core.NewDate(from.Year(), int(from.Month())+1, 0)
	expensesDue, err := s.ledger.ListUnpaidExpensesBetween(ctx, userID, from, to)
	if err != nil {
		return core.RemainingMonth{}, fmt.Errorf("remaining for month: %w", err)
	}

	remaining, err := core.NewRemainingMonth(subsDue, expensesDue)
	if err != nil {
		return core.RemainingMonth{}, fmt.Errorf("remaining for month: %w", err)
	}
	return remaining, nil
}

// ApplyDueSubscriptionsForToday deducts every active subscription billed
// today from its owner's balance. It deducts unconditionally: callers are
// responsible for invoking it at most once per calendar day.
func (s *BudgetService) ApplyDueSubscriptionsForToday(ctx context.Context) ([]core.Charge, error) {
	return s.ApplyDueSubscriptions(ctx, s.now())
}

// ApplyDueSubscriptions charges the subscriptions billed on day's day of
// month.
func (s *BudgetService) ApplyDueSubscriptions(ctx context.Context, day time.Time) ([]core.Charge, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	charges, err := s.ledger.ApplyDueSubscriptions(ctx, day.Day())
	if err != nil {
		return nil, fmt.Errorf("apply due subscriptions: %w", err)
	}

	for _, c := range charges {
		slog.InfoContext(ctx, "Subscription charged",
			"subscription_id", c.SubscriptionID,
			"user_id", c.UserID,
			"name", c.Name,
			"amount_cents", c.Amount.Cents,
			"balance_cents", c.Balance.Cents)
	}
	slog.InfoContext(ctx, "Due subscriptions applied",
		"date", day.Format(core.DateLayout),
		"charged", len(charges))

	return charges, nil
}

// SetReminderPref stores how the daily reminder reaches the user. channelID
// is required for the channel mode and ignored for dm.
func (s *BudgetService) SetReminderPref(ctx context.Context, userID, mode, channelID string) (core.ReminderPref, error) {
	m, err := core.ParseReminderMode(mode)
	if err != nil {
		return core.ReminderPref{}, err
	}
	pref := core.ReminderPref{UserID: userID, Mode: m}
	if m == core.ReminderChannel {
		pref.ChannelID = strings.TrimSpace(channelID)
	}
	if err := pref.Validate(); err != nil {
		return core.ReminderPref{}, err
	}
	if err := s.ready(); err != nil {
		return core.ReminderPref{}, err
	}

	if err := s.ledger.UpsertReminderPref(ctx, pref); err != nil {
		return core.ReminderPref{}, err
	}
	return pref, nil
}

func (s *BudgetService) GetReminderPref(ctx context.Context, userID string) (core.ReminderPref, bool, error) {
	if err := s.ready(); err != nil {
		return core.ReminderPref{}, false, err
	}
	return s.ledger.GetReminderPref(ctx, userID)
}

func (s *BudgetService) ListReminderPrefs(ctx context.Context) ([]core.ReminderPref, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ledger.ListReminderPrefs(ctx)
}

func (s *BudgetService) ready() error {
	if s == nil || s.ledger == nil {
		return core.ErrStorageUnavailable
	}
	return nil
}
