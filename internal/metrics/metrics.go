package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler
	SchedulerTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "budget_scheduler_ticks_total",
			Help: "Total scheduler ticks evaluated",
		},
	)
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_job_runs_total",
			Help: "Scheduled job runs by outcome",
		},
		[]string{"job", "outcome"}, // ok|error|skipped
	)

	// Accounting
	SubscriptionsCharged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "budget_subscriptions_charged_total",
			Help: "Subscriptions deducted from balances",
		},
	)
	ChargedCents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "budget_charged_cents_total",
			Help: "Cents deducted by subscription charges",
		},
	)

	// Reminders
	RemindersDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_reminders_delivered_total",
			Help: "Reminder digests delivered by mode",
		},
		[]string{"mode"},
	)
	RemindersFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_reminders_failed_total",
			Help: "Reminder digests that could not be delivered by mode",
		},
		[]string{"mode"},
	)

	// Commands
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_commands_total",
			Help: "Chat commands handled",
		},
		[]string{"command", "status"},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(SchedulerTicks)
		prometheus.MustRegister(JobRuns)
		prometheus.MustRegister(SubscriptionsCharged)
		prometheus.MustRegister(ChargedCents)
		prometheus.MustRegister(RemindersDelivered)
		prometheus.MustRegister(RemindersFailed)
		prometheus.MustRegister(CommandsTotal)
	})
}
