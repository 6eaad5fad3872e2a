// Package session gates batches per user: one in flight at a time, and a
// cooldown between consecutive batches.
package session

import (
	"sync"
	"time"
)

// Verdict is the outcome of TryAccept.
type Verdict int

const (
	Accepted Verdict = iota
	Busy
	TooSoon
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Busy:
		return "busy"
	case TooSoon:
		return "too_soon"
	default:
		return "unknown"
	}
}

type state struct {
	processing  bool
	lastRequest time.Time
}

// Tracker holds per-user session state. Telegram handlers run concurrently, so
// the check-then-set in TryAccept happens under a lock.
type Tracker struct {
	mu       sync.Mutex
	cooldown time.Duration
	now      func() time.Time
	users    map[int64]*state
}

// NewTracker returns a Tracker with the given cooldown window.
func NewTracker(cooldown time.Duration) *Tracker {
	return &Tracker{
		cooldown: cooldown,
		now:      time.Now,
		users:    make(map[int64]*state),
	}
}

// TryAccept decides whether userID may start a new batch. On Accepted the user
// is marked in progress and the request time is stamped.
func (t *Tracker) TryAccept(userID int64) Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s, ok := t.users[userID]
	if !ok {
		s = &state{}
		t.users[userID] = s
	}
	if s.processing {
		return Busy
	}
	if !s.lastRequest.IsZero() && now.Sub(s.lastRequest) < t.cooldown {
		return TooSoon
	}
	s.processing = true
	s.lastRequest = now
	return Accepted
}

// Complete clears the in-progress flag and re-stamps the time, so the cooldown
// runs from batch completion.
func (t *Tracker) Complete(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.users[userID]
	if !ok {
		s = &state{}
		t.users[userID] = s
	}
	s.processing = false
	s.lastRequest = t.now()
}

// RetryAfter returns how long userID still has to wait, or zero.
func (t *Tracker) RetryAfter(userID int64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.users[userID]
	if !ok || s.processing || s.lastRequest.IsZero() {
		return 0
	}
	if left := t.cooldown - t.now().Sub(s.lastRequest); left > 0 {
		return left
	}
	return 0
}
