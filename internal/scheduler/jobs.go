package scheduler

import (
	"context"
	"time"

	"budgetbot/internal/core"
	"budgetbot/internal/metrics"
	"budgetbot/internal/services"
)

const (
	JobApplySubscriptions = "apply_subscriptions"
	JobNotifyReminders    = "notify_reminders"
)

// Applier charges the subscriptions billed on now's day.
type Applier interface {
	ApplyDueSubscriptions(ctx context.Context, day time.Time) ([]core.Charge, error)
}

// Dispatcher fans the daily digest out to every subscribed user.
type Dispatcher interface {
	Dispatch(ctx context.Context, today time.Time) (services.DispatchReport, error)
}

// ApplyJob deducts due subscriptions once per day. The deductions commit
// atomically, so a failed run releases its marker.
func ApplyJob(at TimeOfDay, applier Applier) Job {
	return Job{
		Name:           JobApplySubscriptions,
		At:             at,
		OncePerDay:     true,
		ReleaseOnError: true,
		Run: func(ctx context.Context, now time.Time) error {
			charges, err := applier.ApplyDueSubscriptions(ctx, now)
			if err != nil {
				return err
			}
			for _, c := range charges {
				metrics.SubscriptionsCharged.Inc()
				metrics.ChargedCents.Add(float64(c.Amount.Cents))
			}
			return nil
		},
	}
}

// NotifyJob sends the daily digests once per day. Per-user failures are
// part of the report and do not fail the job.
func NotifyJob(at TimeOfDay, dispatcher Dispatcher) Job {
	return Job{
		Name:       JobNotifyReminders,
		At:         at,
		OncePerDay: true,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := dispatcher.Dispatch(ctx, now)
			return err
		},
	}
}
