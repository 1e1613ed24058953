package bot

import (
	"sync"
	"time"
)

// throttle is a fixed one-minute window counter per user. Entries idle for
// longer than staleAfter are pruned while counting.
type throttle struct {
	mu         sync.Mutex
	perMinute  int
	users      map[string]*window
	now        func() time.Time
	lastPrune  time.Time
	staleAfter time.Duration
}

type window struct {
	start    time.Time
	commands int
}

func newThrottle(perMinute int, now func() time.Time) *throttle {
	return &throttle{
		perMinute:  perMinute,
		users:      make(map[string]*window),
		now:        now,
		staleAfter: 10 * time.Minute,
	}
}

// Allow counts one command for userID and reports whether it is within the
// limit. A non-positive limit disables throttling.
func (t *throttle) Allow(userID string) bool {
	if t == nil || t.perMinute <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.prune(now)

	w, ok := t.users[userID]
	if !ok || now.Sub(w.start) >= time.Minute {
		t.users[userID] = &window{start: now, commands: 1}
		return true
	}
	w.commands++
	return w.commands <= t.perMinute
}

func (t *throttle) prune(now time.Time) {
	if now.Sub(t.lastPrune) < t.staleAfter {
		return
	}
	t.lastPrune = now
	cutoff := now.Add(-t.staleAfter)
	for id, w := range t.users {
		if w.start.Before(cutoff) {
			delete(t.users, id)
		}
	}
}

// tracked returns the number of users currently holding a window.
func (t *throttle) tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.users)
}
