package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"budgetbot/internal/core"
	"budgetbot/internal/notify"
)

type recordingNotifier struct {
	mu        sync.Mutex
	delivered []notify.Reminder
	failFor   map[string]bool
}

func (n *recordingNotifier) Deliver(_ context.Context, r notify.Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[r.UserID] {
		return notify.ErrUnreachable
	}
	n.delivered = append(n.delivered, r)
	return nil
}

type recordingBroadcaster struct {
	channel, text string
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, channelID, text string) error {
	b.channel, b.text = channelID, text
	return nil
}

type failingSource struct{}

func (failingSource) ListReminderPrefs(context.Context) ([]core.ReminderPref, error) {
	return nil, core.ErrStorageUnavailable
}

func (failingSource) RemainingForMonth(context.Context, string, time.Time) (core.RemainingMonth, error) {
	return core.RemainingMonth{}, core.ErrStorageUnavailable
}

func TestReminderDispatcher_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	s.AddSubscription(ctx, "alice", "Netflix", core.Money{Cents: 1599}, 20)
	s.SetReminderPref(ctx, "alice", "dm", "")
	s.SetReminderPref(ctx, "bob", "channel", "-100777")
	s.SetReminderPref(ctx, "carol", "dm", "")

	notifier := &recordingNotifier{failFor: map[string]bool{"bob": true}}
	d := NewReminderDispatcher(s, notifier, WithConcurrency(2))

	report, err := d.Dispatch(ctx, day(2025, time.October, 17))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Users != 3 || report.Delivered != 2 {
		t.Fatalf("expected 2 of 3 delivered, got %+v", report)
	}
	if !errors.Is(report.Failures["bob"], notify.ErrUnreachable) {
		t.Fatalf("expected bob's failure recorded, got %v", report.Failures)
	}

	var alice notify.Reminder
	for _, r := range notifier.delivered {
		if r.UserID == "alice" {
			alice = r
		}
	}
	if alice.Mode != core.ReminderDM {
		t.Fatalf("alice should be reminded by dm, got %+v", alice)
	}
	if !strings.Contains(alice.Text, "Netflix on day 20: 15.99€") || !strings.Contains(alice.Text, "Total remaining this month: 15.99€") {
		t.Errorf("unexpected digest:\n%s", alice.Text)
	}
}

func TestReminderDispatcher_ChannelAddressing(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	s.SetReminderPref(ctx, "bob", "channel", "-100777")

	notifier := &recordingNotifier{}
	report, err := NewReminderDispatcher(s, notifier).Dispatch(ctx, day(2025, time.October, 17))
	if err != nil || report.Delivered != 1 {
		t.Fatalf("Dispatch: report=%+v err=%v", report, err)
	}
	if got := notifier.delivered[0]; got.Mode != core.ReminderChannel || got.ChannelID != "-100777" {
		t.Fatalf("unexpected addressing %+v", got)
	}
}

func TestReminderDispatcher_FallbackBroadcast(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	b := &recordingBroadcaster{}

	report, err := NewReminderDispatcher(s, &recordingNotifier{}, WithFallbackChannel(b, "-100555")).Dispatch(ctx, time.Now())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !report.Broadcast || b.channel != "-100555" || b.text != FallbackHint {
		t.Fatalf("expected fallback hint broadcast, got report=%+v broadcaster=%+v", report, b)
	}
}

func TestReminderDispatcher_ListFailure(t *testing.T) {
	_, err := NewReminderDispatcher(failingSource{}, &recordingNotifier{}).Dispatch(context.Background(), time.Now())
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestRenderDigest(t *testing.T) {
	r, err := core.NewRemainingMonth(
		[]core.Subscription{{Name: "Netflix", Amount: core.Money{Cents: 1599}, DayOfMonth: 5}},
		[]core.Expense{{Name: "Rent", Amount: core.Money{Cents: 80000}, DueDate: core.NewDate(2025, 10, 20)}},
	)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"Budget reminder:",
		"- Upcoming subscriptions:",
		"  • Netflix on day 5: 15.99€",
		"- Expenses to pay:",
		"  • Rent due 2025-10-20: 800.00€",
		"Total remaining this month: 815.99€",
	}, "\n")
	if got := RenderDigest(r, "€"); got != want {
		t.Errorf("RenderDigest() =\n%s\nwant\n%s", got, want)
	}

	if got := RenderRemaining(core.RemainingMonth{}, "$"); got != "Total remaining this month: 0.00$" {
		t.Errorf("RenderRemaining(empty) = %q", got)
	}
}
