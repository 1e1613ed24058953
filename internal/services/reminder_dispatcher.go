package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetbot/internal/core"
	"budgetbot/internal/metrics"
	"budgetbot/internal/notify"
)

// ReminderSource is the part of the engine the dispatcher reads from.
type ReminderSource interface {
	ListReminderPrefs(ctx context.Context) ([]core.ReminderPref, error)
	RemainingForMonth(ctx context.Context, userID string, today time.Time) (core.RemainingMonth, error)
}

// DispatchReport summarizes one notification sweep.
type DispatchReport struct {
	Users     int
	Delivered int
	Failures  map[string]error // by user id
	Broadcast bool
}

// ReminderDispatcher sends every user with a reminder preference their
// digest. Each user is an independent unit of work: one failure never
// stops or cancels the others.
type ReminderDispatcher struct {
	source          ReminderSource
	notifier        notify.Notifier
	broadcaster     notify.Broadcaster
	concurrency     int
	currencyMarker  string
	fallbackChannel string
}

type DispatcherOption func(*ReminderDispatcher)

// WithConcurrency bounds the number of users processed at once.
func WithConcurrency(n int) DispatcherOption {
	return func(d *ReminderDispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithCurrencyMarker(marker string) DispatcherOption {
	return func(d *ReminderDispatcher) { d.currencyMarker = marker }
}

// WithFallbackChannel posts FallbackHint to channelID when no user has a
// reminder preference.
func WithFallbackChannel(b notify.Broadcaster, channelID string) DispatcherOption {
	return func(d *ReminderDispatcher) {
		d.broadcaster = b
		d.fallbackChannel = channelID
	}
}

func NewReminderDispatcher(source ReminderSource, notifier notify.Notifier, opts ...DispatcherOption) *ReminderDispatcher {
	d := &ReminderDispatcher{
		source:         source,
		notifier:       notifier,
		concurrency:    4,
		currencyMarker: core.DefaultCurrencyMarker,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one sweep for the given day. The returned error is only
// about listing preferences; per-user failures are in the report.
func (d *ReminderDispatcher) Dispatch(ctx context.Context, today time.Time) (DispatchReport, error) {
	prefs, err := d.source.ListReminderPrefs(ctx)
	if err != nil {
		return DispatchReport{}, fmt.Errorf("list reminder preferences: %w", err)
	}

	report := DispatchReport{Users: len(prefs), Failures: map[string]error{}}
	if len(prefs) == 0 {
		if d.broadcaster != nil && d.fallbackChannel != "" {
			if err := d.broadcaster.Broadcast(ctx, d.fallbackChannel, FallbackHint); err != nil {
				slog.WarnContext(ctx, "Fallback reminder broadcast failed",
					"channel_id", d.fallbackChannel,
					"error", err)
			} else {
				report.Broadcast = true
			}
		}
		return report, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.concurrency)

	for _, pref := range prefs {
		pref := pref
		g.Go(func() error {
			err := d.remind(ctx, pref, today)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures[pref.UserID] = err
				metrics.RemindersFailed.WithLabelValues(string(pref.Mode)).Inc()
				slog.WarnContext(ctx, "Reminder delivery failed",
					"user_id", pref.UserID,
					"mode", pref.Mode,
					"error", err)
				return nil
			}
			report.Delivered++
			metrics.RemindersDelivered.WithLabelValues(string(pref.Mode)).Inc()
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Reminder sweep complete",
		"users", report.Users,
		"delivered", report.Delivered,
		"failed", len(report.Failures))

	return report, nil
}

func (d *ReminderDispatcher) remind(ctx context.Context, pref core.ReminderPref, today time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	remaining, err := d.source.RemainingForMonth(ctx, pref.UserID, today)
	if err != nil {
		return fmt.Errorf("compute remaining: %w", err)
	}
	return d.notifier.Deliver(ctx, notify.Reminder{
		UserID:    pref.UserID,
		Mode:      pref.Mode,
		ChannelID: pref.ChannelID,
		Text:      RenderDigest(remaining, d.currencyMarker),
	})
}
