package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Subscription struct {
	ID          int64
	UserID      string
	Name        string
	AmountCents int64
	DayOfMonth  int64
	Active      bool
}

type ManualExpense struct {
	ID          int64
	UserID      string
	Name        string
	AmountCents int64
	DueDate     string
	Paid        bool
}

type UserReminder struct {
	UserID    string
	Mode      string
	ChannelID sql.NullString
}

const createSubscription = `
INSERT INTO subscriptions (user_id, name, amount_cents, day_of_month)
VALUES (?, ?, ?, ?)
RETURNING id
`

type CreateSubscriptionParams struct {
	UserID      string
	Name        string
	AmountCents int64
	DayOfMonth  int64
}

func (q *Queries) CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createSubscription, arg.UserID, arg.Name, arg.AmountCents, arg.DayOfMonth)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listSubscriptions = `
SELECT id, user_id, name, amount_cents, day_of_month, active
FROM subscriptions
WHERE user_id = ?
ORDER BY day_of_month, name
`

func (q *Queries) ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listSubscriptions, userID)
	if err != nil {
		return nil, err
	}
	return scanSubscriptions(rows)
}

const listActiveSubscriptions = `
SELECT id, user_id, name, amount_cents, day_of_month, active
FROM subscriptions
WHERE user_id = ? AND active = 1
ORDER BY day_of_month, name
`

func (q *Queries) ListActiveSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listActiveSubscriptions, userID)
	if err != nil {
		return nil, err
	}
	return scanSubscriptions(rows)
}

const listActiveSubscriptionsByDay = `
SELECT id, user_id, name, amount_cents, day_of_month, active
FROM subscriptions
WHERE active = 1 AND day_of_month = ?
ORDER BY user_id, id
`

func (q *Queries) ListActiveSubscriptionsByDay(ctx context.Context, day int64) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listActiveSubscriptionsByDay, day)
	if err != nil {
		return nil, err
	}
	return scanSubscriptions(rows)
}

const setSubscriptionActive = `
UPDATE subscriptions SET active = ? WHERE id = ? AND user_id = ?
`

type SetSubscriptionActiveParams struct {
	Active bool
	ID     int64
	UserID string
}

func (q *Queries) SetSubscriptionActive(ctx context.Context, arg SetSubscriptionActiveParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setSubscriptionActive, arg.Active, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteSubscription = `
DELETE FROM subscriptions WHERE id = ? AND user_id = ?
`

func (q *Queries) DeleteSubscription(ctx context.Context, id int64, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSubscription, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createExpense = `
INSERT INTO manual_expenses (user_id, name, amount_cents, due_date)
VALUES (?, ?, ?, ?)
RETURNING id
`

type CreateExpenseParams struct {
	UserID      string
	Name        string
	AmountCents int64
	DueDate     string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createExpense, arg.UserID, arg.Name, arg.AmountCents, arg.DueDate)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listUnpaidExpenses = `
SELECT id, user_id, name, amount_cents, due_date, paid
FROM manual_expenses
WHERE user_id = ? AND paid = 0
ORDER BY due_date, name
`

func (q *Queries) ListUnpaidExpenses(ctx context.Context, userID string) ([]ManualExpense, error) {
	rows, err := q.db.QueryContext(ctx, listUnpaidExpenses, userID)
	if err != nil {
		return nil, err
	}
	return scanExpenses(rows)
}

const listUnpaidExpensesBetween = `
SELECT id, user_id, name, amount_cents, due_date, paid
FROM manual_expenses
WHERE user_id = ? AND paid = 0 AND due_date >= ? AND due_date <= ?
ORDER BY due_date, name
`

type ListUnpaidExpensesBetweenParams struct {
	UserID string
	From   string
	To     string
}

func (q *Queries) ListUnpaidExpensesBetween(ctx context.Context, arg ListUnpaidExpensesBetweenParams) ([]ManualExpense, error) {
	rows, err := q.db.QueryContext(ctx, listUnpaidExpensesBetween, arg.UserID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	return scanExpenses(rows)
}

const markExpensePaid = `
UPDATE manual_expenses SET paid = 1 WHERE id = ? AND user_id = ?
`

func (q *Queries) MarkExpensePaid(ctx context.Context, id int64, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markExpensePaid, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpense = `
DELETE FROM manual_expenses WHERE id = ? AND user_id = ?
`

func (q *Queries) DeleteExpense(ctx context.Context, id int64, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getBalance = `
SELECT balance_cents FROM balances WHERE user_id = ?
`

func (q *Queries) GetBalance(ctx context.Context, userID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, getBalance, userID)
	var cents int64
	err := row.Scan(&cents)
	return cents, err
}

const setBalance = `
INSERT INTO balances (user_id, balance_cents) VALUES (?, ?)
ON CONFLICT (user_id) DO UPDATE SET balance_cents = excluded.balance_cents
`

func (q *Queries) SetBalance(ctx context.Context, userID string, cents int64) error {
	_, err := q.db.ExecContext(ctx, setBalance, userID, cents)
	return err
}

// SQLite promotes an overflowing integer sum to REAL; the WHERE clause skips
// such updates so no row is returned instead.
const addToBalance = `
INSERT INTO balances (user_id, balance_cents) VALUES (?, ?)
ON CONFLICT (user_id) DO UPDATE SET balance_cents = balance_cents + excluded.balance_cents
WHERE typeof(balance_cents + excluded.balance_cents) = 'integer'
RETURNING balance_cents
`

func (q *Queries) AddToBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, addToBalance, userID, delta)
	var cents int64
	err := row.Scan(&cents)
	return cents, err
}

const upsertReminder = `
INSERT INTO user_reminders (user_id, mode, channel_id) VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET mode = excluded.mode, channel_id = excluded.channel_id
`

func (q *Queries) UpsertReminder(ctx context.Context, arg UserReminder) error {
	_, err := q.db.ExecContext(ctx, upsertReminder, arg.UserID, arg.Mode, arg.ChannelID)
	return err
}

const getReminder = `
SELECT user_id, mode, channel_id FROM user_reminders WHERE user_id = ?
`

func (q *Queries) GetReminder(ctx context.Context, userID string) (UserReminder, error) {
	row := q.db.QueryRowContext(ctx, getReminder, userID)
	var r UserReminder
	err := row.Scan(&r.UserID, &r.Mode, &r.ChannelID)
	return r, err
}

const listReminders = `
SELECT user_id, mode, channel_id FROM user_reminders ORDER BY user_id
`

func (q *Queries) ListReminders(ctx context.Context) ([]UserReminder, error) {
	rows, err := q.db.QueryContext(ctx, listReminders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UserReminder
	for rows.Next() {
		var r UserReminder
		if err := rows.Scan(&r.UserID, &r.Mode, &r.ChannelID); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const claimJobRun = `
INSERT OR IGNORE INTO job_runs (job, run_date) VALUES (?, ?)
`

func (q *Queries) ClaimJobRun(ctx context.Context, job, runDate string) (int64, error) {
	result, err := q.db.ExecContext(ctx, claimJobRun, job, runDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const releaseJobRun = `
DELETE FROM job_runs WHERE job = ? AND run_date = ?
`

func (q *Queries) ReleaseJobRun(ctx context.Context, job, runDate string) error {
	_, err := q.db.ExecContext(ctx, releaseJobRun, job, runDate)
	return err
}

func scanSubscriptions(rows *sql.Rows) ([]Subscription, error) {
	defer rows.Close()
	var items []Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.AmountCents, &s.DayOfMonth, &s.Active); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanExpenses(rows *sql.Rows) ([]ManualExpense, error) {
	defer rows.Close()
	var items []ManualExpense
	for rows.Next() {
		var e ManualExpense
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &e.AmountCents, &e.DueDate, &e.Paid); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
