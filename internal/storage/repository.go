package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"budgetbot/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the ledger store. Every method is scoped by user id
// except the system-wide reads used by scheduled jobs.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	path    string
	closed  atomic.Bool
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single active connection; scheduled jobs and commands share it.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		path:    dbPath,
	}

	if err := repo.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// EnsureSchema applies pending migrations. It is safe to call repeatedly.
func (r *SQLiteRepository) EnsureSchema() error {
	if err := r.check(); err != nil {
		return err
	}
	if err := RunMigrations(r.path); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil || r.closed.Swap(true) {
		return nil
	}
	return r.db.Close()
}

// Ping reports whether the store connection is usable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) check() error {
	if r == nil || r.db == nil || r.closed.Load() {
		return core.ErrStorageUnavailable
	}
	return nil
}

func (r *SQLiteRepository) CreateSubscription(ctx context.Context, s core.Subscription) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	id, err := r.queries.CreateSubscription(ctx, CreateSubscriptionParams{
		UserID:      s.UserID,
		Name:        s.Name,
		AmountCents: s.Amount.Cents,
		DayOfMonth:  int64(s.DayOfMonth),
	})
	if err != nil {
		return 0, fmt.Errorf("create subscription: %w", err)
	}

	slog.InfoContext(ctx, "Subscription saved",
		"id", id,
		"user_id", s.UserID,
		"amount_cents", s.Amount.Cents,
		"day_of_month", s.DayOfMonth)

	return id, nil
}

// ListSubscriptions returns every subscription of a user ordered by
// (day_of_month, name).
func (r *SQLiteRepository) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return toCoreSubscriptions(rows), nil
}

func (r *SQLiteRepository) ListActiveSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListActiveSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	return toCoreSubscriptions(rows), nil
}

func (r *SQLiteRepository) SetSubscriptionActive(ctx context.Context, userID string, id int64, active bool) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	n, err := r.queries.SetSubscriptionActive(ctx, SetSubscriptionActiveParams{Active: active, ID: id, UserID: userID})
	if err != nil {
		return false, fmt.Errorf("set subscription active: %w", err)
	}
	return n > 0, nil
}

// DeleteSubscription removes the subscription if it exists and belongs to
// userID. The boolean reports whether a row was removed.
func (r *SQLiteRepository) DeleteSubscription(ctx context.Context, userID string, id int64) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	n, err := r.queries.DeleteSubscription(ctx, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	id, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		UserID:      e.UserID,
		Name:        e.Name,
		AmountCents: e.Amount.Cents,
		DueDate:     e.DueDate.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"user_id", e.UserID,
		"amount_cents", e.Amount.Cents,
		"due_date", e.DueDate.String())

	return id, nil
}

// ListUnpaidExpenses returns unpaid expenses ordered by (due_date, name).
func (r *SQLiteRepository) ListUnpaidExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListUnpaidExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unpaid expenses: %w", err)
	}
	return toCoreExpenses(rows)
}

// ListUnpaidExpensesBetween returns unpaid expenses with from <= due_date <= to.
func (r *SQLiteRepository) ListUnpaidExpensesBetween(ctx context.Context, userID string, from, to core.Date) ([]core.Expense, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListUnpaidExpensesBetween(ctx, ListUnpaidExpensesBetweenParams{
		UserID: userID,
		From:   from.String(),
		To:     to.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list unpaid expenses between %s and %s: %w", from, to, err)
	}
	return toCoreExpenses(rows)
}

func (r *SQLiteRepository) MarkExpensePaid(ctx context.Context, userID string, id int64) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	n, err := r.queries.MarkExpensePaid(ctx, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark expense paid: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID string, id int64) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	n, err := r.queries.DeleteExpense(ctx, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete expense: %w", err)
	}
	return n > 0, nil
}

// GetBalance returns 0 for a user without a balance row.
func (r *SQLiteRepository) GetBalance(ctx context.Context, userID string) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	cents, err := r.queries.GetBalance(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return cents, nil
}

func (r *SQLiteRepository) SetBalance(ctx context.Context, userID string, cents int64) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := r.queries.SetBalance(ctx, userID, cents); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// AddToBalance adds delta (possibly negative) and returns the new balance.
// A missing row starts from 0. A result outside the int64 range leaves the
// balance unchanged and returns core.ErrAmountOverflow.
func (r *SQLiteRepository) AddToBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	cents, err := r.queries.AddToBalance(ctx, userID, delta)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("add to balance of user %s: %w", userID, core.ErrAmountOverflow)
	}
	if err != nil {
		return 0, fmt.Errorf("add to balance: %w", err)
	}
	return cents, nil
}

// ApplyDueSubscriptions deducts every active subscription billed on day
// from its owner's balance. All deductions commit together or not at all,
// except charges that would overflow a balance, which are skipped.
func (r *SQLiteRepository) ApplyDueSubscriptions(ctx context.Context, day int) ([]core.Charge, error) {
	if err := r.check(); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin apply transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	subs, err := q.ListActiveSubscriptionsByDay(ctx, int64(day))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions due on day %d: %w", day, err)
	}

	charges := make([]core.Charge, 0, len(subs))
	for _, s := range subs {
		balance, err := q.AddToBalance(ctx, s.UserID, -s.AmountCents)
		if errors.Is(err, sql.ErrNoRows) {
			slog.WarnContext(ctx, "Subscription charge skipped, balance out of range",
				"subscription_id", s.ID,
				"user_id", s.UserID,
				"amount_cents", s.AmountCents)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("charge subscription %d: %w", s.ID, err)
		}
		charges = append(charges, core.Charge{
			SubscriptionID: s.ID,
			UserID:         s.UserID,
			Name:           s.Name,
			Amount:         core.Money{Cents: s.AmountCents},
			Balance:        core.Money{Cents: balance},
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit apply transaction: %w", err)
	}
	return charges, nil
}

func (r *SQLiteRepository) UpsertReminderPref(ctx context.Context, p core.ReminderPref) error {
	if err := r.check(); err != nil {
		return err
	}
	err := r.queries.UpsertReminder(ctx, UserReminder{
		UserID:    p.UserID,
		Mode:      string(p.Mode),
		ChannelID: sql.NullString{String: p.ChannelID, Valid: p.Mode == core.ReminderChannel},
	})
	if err != nil {
		return fmt.Errorf("upsert reminder preference: %w", err)
	}
	return nil
}

// GetReminderPref returns the preference of a user; found is false when the
// user never configured one.
func (r *SQLiteRepository) GetReminderPref(ctx context.Context, userID string) (pref core.ReminderPref, found bool, err error) {
	if err := r.check(); err != nil {
		return core.ReminderPref{}, false, err
	}
	row, err := r.queries.GetReminder(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ReminderPref{}, false, nil
	}
	if err != nil {
		return core.ReminderPref{}, false, fmt.Errorf("get reminder preference: %w", err)
	}
	return toCoreReminder(row), true, nil
}

func (r *SQLiteRepository) ListReminderPrefs(ctx context.Context) ([]core.ReminderPref, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListReminders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reminder preferences: %w", err)
	}
	prefs := make([]core.ReminderPref, len(rows))
	for i, row := range rows {
		prefs[i] = toCoreReminder(row)
	}
	return prefs, nil
}

// ClaimJobRun records that job runs on date. It returns false when the job
// already claimed that date.
func (r *SQLiteRepository) ClaimJobRun(ctx context.Context, job string, date core.Date) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	n, err := r.queries.ClaimJobRun(ctx, job, date.String())
	if err != nil {
		return false, fmt.Errorf("claim job run %s: %w", job, err)
	}
	return n > 0, nil
}

// ReleaseJobRun drops a claim so the job may run again on date.
func (r *SQLiteRepository) ReleaseJobRun(ctx context.Context, job string, date core.Date) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := r.queries.ReleaseJobRun(ctx, job, date.String()); err != nil {
		return fmt.Errorf("release job run %s: %w", job, err)
	}
	return nil
}

func toCoreSubscriptions(rows []Subscription) []core.Subscription {
	subs := make([]core.Subscription, len(rows))
	for i, s := range rows {
		subs[i] = core.Subscription{
			ID:         s.ID,
			UserID:     s.UserID,
			Name:       s.Name,
			Amount:     core.Money{Cents: s.AmountCents},
			DayOfMonth: int(s.DayOfMonth),
			Active:     s.Active,
		}
	}
	return subs
}

func toCoreExpenses(rows []ManualExpense) ([]core.Expense, error) {
	expenses := make([]core.Expense, len(rows))
	for i, e := range rows {
		due, err := core.ParseDueDate(e.DueDate)
		if err != nil {
			return nil, fmt.Errorf("expense %d has malformed due date %q: %w", e.ID, e.DueDate, err)
		}
		expenses[i] = core.Expense{
			ID:      e.ID,
			UserID:  e.UserID,
			Name:    e.Name,
			Amount:  core.Money{Cents: e.AmountCents},
			DueDate: due,
			Paid:    e.Paid,
		}
	}
	return expenses, nil
}

func toCoreReminder(row UserReminder) core.ReminderPref {
	p := core.ReminderPref{
		UserID: row.UserID,
		Mode:   core.ReminderMode(row.Mode),
	}
	if row.ChannelID.Valid {
		p.ChannelID = row.ChannelID.String
	}
	return p
}
