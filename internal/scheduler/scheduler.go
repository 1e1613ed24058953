// Package scheduler runs named jobs at fixed times of day.
//
// A single ticker fires at a fixed interval; on every tick each job whose
// trigger matches the current hour and minute runs once. Jobs that must not
// run twice on the same calendar day claim a per-day marker in the RunLog
// before running, so a restart inside the trigger minute does not repeat
// them.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"budgetbot/internal/core"
	"budgetbot/internal/metrics"
)

// TimeOfDay is a wall-clock trigger with minute granularity.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" in 24-hour format.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Matches reports whether now falls in the trigger minute.
func (t TimeOfDay) Matches(now time.Time) bool {
	return now.Hour() == t.Hour && now.Minute() == t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Job pairs a trigger with the action to run.
type Job struct {
	Name string
	At   TimeOfDay
	Run  func(ctx context.Context, now time.Time) error

	// OncePerDay claims a per-day marker before running.
	OncePerDay bool
	// ReleaseOnError drops the day's marker when Run fails, allowing
	// another attempt the same day. Only safe for all-or-nothing jobs.
	ReleaseOnError bool
}

// RunLog persists which jobs ran on which day.
type RunLog interface {
	ClaimJobRun(ctx context.Context, job string, date core.Date) (bool, error)
	ReleaseJobRun(ctx context.Context, job string, date core.Date) error
}

type Scheduler struct {
	jobs     []Job
	interval time.Duration
	runs     RunLog
	clock    func() time.Time
}

func New(interval time.Duration, runs RunLog, jobs ...Job) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		jobs:     jobs,
		interval: interval,
		runs:     runs,
		clock:    time.Now,
	}
}

// Run blocks until ctx is cancelled. Ticking starts only once ready is
// closed; a nil ready channel means the transport is already up. The ticker
// is stopped before Run returns. A tick in progress completes first.
func (s *Scheduler) Run(ctx context.Context, ready <-chan struct{}) error {
	if ready != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-ready:
		}
	}

	slog.InfoContext(ctx, "Scheduler started", "interval", s.interval, "jobs", s.jobNames())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Scheduler stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			s.Tick(ctx, s.clock())
		}
	}
}

// Tick evaluates every trigger against now and runs the matching jobs.
// Job failures are logged and never stop the loop.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	metrics.SchedulerTicks.Inc()
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		if !job.At.Matches(now) {
			continue
		}
		s.runJob(ctx, job, now)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job, now time.Time) {
	tickID := uuid.NewString()
	date := core.DateOf(now)
	logger := slog.With("job", job.Name, "tick_id", tickID, "date", date.String())

	if job.OncePerDay && s.runs != nil {
		claimed, err := s.runs.ClaimJobRun(ctx, job.Name, date)
		if err != nil {
			metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
			logger.ErrorContext(ctx, "Failed to claim job run", "error", err)
			return
		}
		if !claimed {
			metrics.JobRuns.WithLabelValues(job.Name, "skipped").Inc()
			logger.InfoContext(ctx, "Job already ran today, skipping")
			return
		}
	}

	start := time.Now()
	err := safeRun(ctx, job, now)
	if err != nil {
		metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
		logger.ErrorContext(ctx, "Job failed", "error", err, "duration", time.Since(start))
		if job.OncePerDay && job.ReleaseOnError && s.runs != nil {
			if rerr := s.runs.ReleaseJobRun(ctx, job.Name, date); rerr != nil {
				logger.ErrorContext(ctx, "Failed to release job run", "error", rerr)
			}
		}
		return
	}

	metrics.JobRuns.WithLabelValues(job.Name, "ok").Inc()
	logger.InfoContext(ctx, "Job complete", "duration", time.Since(start))
}

func safeRun(ctx context.Context, job Job, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(ctx, now)
}

func (s *Scheduler) jobNames() []string {
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name + "@" + j.At.String()
	}
	return names
}
