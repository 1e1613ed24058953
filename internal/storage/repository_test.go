package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"budgetbot/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	repo := newTestRepo(t)
	for i := 0; i < 3; i++ {
		if err := repo.EnsureSchema(); err != nil {
			t.Fatalf("EnsureSchema call %d: %v", i, err)
		}
	}
	version, dirty, err := SchemaVersion(repo.path)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("expected clean version 2, got %d (dirty=%v)", version, dirty)
	}
}

func TestSubscriptions_OrderAndScope(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, s := range []core.Subscription{
		{UserID: "u1", Name: "Spotify", Amount: core.Money{Cents: 999}, DayOfMonth: 10},
		{UserID: "u1", Name: "Netflix", Amount: core.Money{Cents: 1599}, DayOfMonth: 5},
		{UserID: "u1", Name: "Apple", Amount: core.Money{Cents: 299}, DayOfMonth: 10},
		{UserID: "u2", Name: "Gym", Amount: core.Money{Cents: 3000}, DayOfMonth: 1},
	} {
		if _, err := repo.CreateSubscription(ctx, s); err != nil {
			t.Fatalf("CreateSubscription: %v", err)
		}
	}

	subs, err := repo.ListSubscriptions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	want := []string{"Netflix", "Apple", "Spotify"}
	if len(subs) != len(want) {
		t.Fatalf("expected %d subscriptions, got %d", len(want), len(subs))
	}
	for i, name := range want {
		if subs[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, subs[i].Name)
		}
		if !subs[i].Active {
			t.Errorf("%s should be active by default", subs[i].Name)
		}
	}

	// Foreign id: silent no-op
	gym, _ := repo.ListSubscriptions(ctx, "u2")
	deleted, err := repo.DeleteSubscription(ctx, "u1", gym[0].ID)
	if err != nil || deleted {
		t.Fatalf("deleting a foreign subscription should be a no-op, got deleted=%v err=%v", deleted, err)
	}
	deleted, err = repo.DeleteSubscription(ctx, "u1", 9999)
	if err != nil || deleted {
		t.Fatalf("deleting a missing subscription should be a no-op, got deleted=%v err=%v", deleted, err)
	}
	deleted, err = repo.DeleteSubscription(ctx, "u2", gym[0].ID)
	if err != nil || !deleted {
		t.Fatalf("expected delete, got deleted=%v err=%v", deleted, err)
	}
}

func TestSubscriptions_DayCheckConstraint(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateSubscription(context.Background(), core.Subscription{
		UserID: "u1", Name: "Bad", Amount: core.Money{Cents: 1}, DayOfMonth: 31,
	})
	if err == nil {
		t.Fatal("expected the schema to reject day_of_month 31")
	}
}

func TestExpenses_UnpaidOrderAndMarkPaid(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	add := func(name, due string, cents int64) int64 {
		t.Helper()
		d, err := core.ParseDueDate(due)
		if err != nil {
			t.Fatal(err)
		}
		id, err := repo.CreateExpense(ctx, core.Expense{UserID: "u1", Name: name, Amount: core.Money{Cents: cents}, DueDate: d})
		if err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
		return id
	}
	add("Rent", "2025-10-20", 80000)
	insurance := add("Insurance", "2025-10-20", 4000)
	add("Dentist", "2025-10-03", 6000)
	add("Taxes", "2025-11-02", 12000)

	expenses, err := repo.ListUnpaidExpenses(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUnpaidExpenses: %v", err)
	}
	want := []string{"Dentist", "Insurance", "Rent", "Taxes"}
	for i, name := range want {
		if expenses[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, expenses[i].Name)
		}
	}

	if ok, err := repo.MarkExpensePaid(ctx, "u2", insurance); err != nil || ok {
		t.Fatalf("foreign mark paid should be a no-op, got ok=%v err=%v", ok, err)
	}
	if ok, err := repo.MarkExpensePaid(ctx, "u1", insurance); err != nil || !ok {
		t.Fatalf("MarkExpensePaid: ok=%v err=%v", ok, err)
	}

	between, err := repo.ListUnpaidExpensesBetween(ctx, "u1", core.NewDate(2025, 10, 17), core.NewDate(2025, 10, 31))
	if err != nil {
		t.Fatalf("ListUnpaidExpensesBetween: %v", err)
	}
	if len(between) != 1 || between[0].Name != "Rent" {
		t.Fatalf("expected only Rent, got %+v", between)
	}
	if between[0].DueDate.String() != "2025-10-20" {
		t.Errorf("unexpected due date %s", between[0].DueDate)
	}
}

func TestBalance_UpsertSemantics(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if b, err := repo.GetBalance(ctx, "u1"); err != nil || b != 0 {
		t.Fatalf("expected default 0, got %d (err=%v)", b, err)
	}
	if b, err := repo.AddToBalance(ctx, "u1", -250); err != nil || b != -250 {
		t.Fatalf("expected -250, got %d (err=%v)", b, err)
	}
	if b, err := repo.AddToBalance(ctx, "u1", 1000); err != nil || b != 750 {
		t.Fatalf("expected 750, got %d (err=%v)", b, err)
	}
	if err := repo.SetBalance(ctx, "u1", 42); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	if b, _ := repo.GetBalance(ctx, "u1"); b != 42 {
		t.Fatalf("expected 42, got %d", b)
	}
}

func TestBalance_OverflowLeavesBalanceIntact(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.SetBalance(ctx, "u1", math.MaxInt64); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}
	if _, err := repo.AddToBalance(ctx, "u1", 1); !errors.Is(err, core.ErrAmountOverflow) {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
	if b, err := repo.GetBalance(ctx, "u1"); err != nil || b != math.MaxInt64 {
		t.Fatalf("balance must stay an intact integer, got %d (err=%v)", b, err)
	}

	repo.SetBalance(ctx, "u2", math.MinInt64+10)
	if _, err := repo.AddToBalance(ctx, "u2", -11); !errors.Is(err, core.ErrAmountOverflow) {
		t.Fatalf("expected ErrAmountOverflow below the range, got %v", err)
	}
	if b, err := repo.AddToBalance(ctx, "u2", -10); err != nil || b != math.MinInt64 {
		t.Fatalf("expected MinInt64, got %d (err=%v)", b, err)
	}
}

func TestApplyDueSubscriptions_OverflowSkipsOnlyThatCharge(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	repo.CreateSubscription(ctx, core.Subscription{UserID: "poor", Name: "Gym", Amount: core.Money{Cents: 3000}, DayOfMonth: 5})
	repo.CreateSubscription(ctx, core.Subscription{UserID: "u1", Name: "Netflix", Amount: core.Money{Cents: 1599}, DayOfMonth: 5})
	repo.SetBalance(ctx, "poor", math.MinInt64+1)
	repo.SetBalance(ctx, "u1", 10000)

	charges, err := repo.ApplyDueSubscriptions(ctx, 5)
	if err != nil {
		t.Fatalf("ApplyDueSubscriptions: %v", err)
	}
	if len(charges) != 1 || charges[0].UserID != "u1" {
		t.Fatalf("expected only u1 charged, got %+v", charges)
	}
	if b, _ := repo.GetBalance(ctx, "u1"); b != 8401 {
		t.Fatalf("expected 8401, got %d", b)
	}
	if b, err := repo.GetBalance(ctx, "poor"); err != nil || b != math.MinInt64+1 {
		t.Fatalf("skipped balance must be unchanged, got %d (err=%v)", b, err)
	}
}

func TestApplyDueSubscriptions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	repo.CreateSubscription(ctx, core.Subscription{UserID: "u1", Name: "Netflix", Amount: core.Money{Cents: 1599}, DayOfMonth: 5})
	repo.CreateSubscription(ctx, core.Subscription{UserID: "u1", Name: "Gym", Amount: core.Money{Cents: 3000}, DayOfMonth: 5})
	repo.CreateSubscription(ctx, core.Subscription{UserID: "u2", Name: "Cloud", Amount: core.Money{Cents: 100}, DayOfMonth: 6})
	paused, _ := repo.CreateSubscription(ctx, core.Subscription{UserID: "u2", Name: "Paused", Amount: core.Money{Cents: 500}, DayOfMonth: 5})
	if _, err := repo.SetSubscriptionActive(ctx, "u2", paused, false); err != nil {
		t.Fatal(err)
	}
	repo.SetBalance(ctx, "u1", 10000)

	charges, err := repo.ApplyDueSubscriptions(ctx, 5)
	if err != nil {
		t.Fatalf("ApplyDueSubscriptions: %v", err)
	}
	if len(charges) != 2 {
		t.Fatalf("expected 2 charges, got %d", len(charges))
	}
	if b, _ := repo.GetBalance(ctx, "u1"); b != 10000-1599-3000 {
		t.Errorf("unexpected u1 balance %d", b)
	}
	if b, _ := repo.GetBalance(ctx, "u2"); b != 0 {
		t.Errorf("inactive and off-day subscriptions must not be charged, got %d", b)
	}
}

func TestReminderPrefs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, found, err := repo.GetReminderPref(ctx, "u1"); err != nil || found {
		t.Fatalf("expected no preference, got found=%v err=%v", found, err)
	}
	if err := repo.UpsertReminderPref(ctx, core.ReminderPref{UserID: "u1", Mode: core.ReminderChannel, ChannelID: "123"}); err != nil {
		t.Fatalf("UpsertReminderPref: %v", err)
	}
	if err := repo.UpsertReminderPref(ctx, core.ReminderPref{UserID: "u2", Mode: core.ReminderDM}); err != nil {
		t.Fatalf("UpsertReminderPref: %v", err)
	}
	p, found, err := repo.GetReminderPref(ctx, "u1")
	if err != nil || !found || p.Mode != core.ReminderChannel || p.ChannelID != "123" {
		t.Fatalf("unexpected preference %+v found=%v err=%v", p, found, err)
	}

	// Switching to dm clears the channel
	repo.UpsertReminderPref(ctx, core.ReminderPref{UserID: "u1", Mode: core.ReminderDM, ChannelID: "123"})
	p, _, _ = repo.GetReminderPref(ctx, "u1")
	if p.Mode != core.ReminderDM || p.ChannelID != "" {
		t.Fatalf("expected dm without channel, got %+v", p)
	}

	prefs, err := repo.ListReminderPrefs(ctx)
	if err != nil || len(prefs) != 2 {
		t.Fatalf("expected 2 preferences, got %d (err=%v)", len(prefs), err)
	}
}

func TestJobRuns_ClaimOncePerDay(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	day := core.NewDate(2025, 10, 5)

	if ok, err := repo.ClaimJobRun(ctx, "apply", day); err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.ClaimJobRun(ctx, "apply", day); err != nil || ok {
		t.Fatalf("second claim must be refused: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.ClaimJobRun(ctx, "notify", day); !ok {
		t.Fatal("a different job must claim independently")
	}
	if ok, _ := repo.ClaimJobRun(ctx, "apply", core.NewDate(2025, 10, 6)); !ok {
		t.Fatal("the next day must claim independently")
	}
	if err := repo.ReleaseJobRun(ctx, "apply", day); err != nil {
		t.Fatalf("ReleaseJobRun: %v", err)
	}
	if ok, _ := repo.ClaimJobRun(ctx, "apply", day); !ok {
		t.Fatal("claim after release should succeed")
	}
}

func TestClosedRepository_StorageUnavailable(t *testing.T) {
	repo := newTestRepo(t)
	repo.Close()

	if _, err := repo.GetBalance(context.Background(), "u1"); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	var nilRepo *SQLiteRepository
	if err := nilRepo.Ping(context.Background()); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable on nil repository, got %v", err)
	}
}
