package ratelimiter

import (
	"sync"
	"time"
)

// Limiter lets one action through per cooldown and coalesces the rest.
// Rejected callers can mark the action as pending so that it runs once
// the cooldown has passed instead of being lost.
type Limiter struct {
	mu          sync.Mutex
	cooldown    time.Duration
	now         func() time.Time
	lastAllowed time.Time
	pending     bool
}

// New creates a limiter with the given cooldown
func New(cooldown time.Duration) *Limiter {
	return &Limiter{cooldown: cooldown, now: time.Now}
}

// WithClock replaces the time source, for tests
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow reports whether the action may run now. When it may not, the
// remaining cooldown is returned.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowLocked()
}

func (l *Limiter) allowLocked() (bool, time.Duration) {
	now := l.now()
	if l.lastAllowed.IsZero() || now.Sub(l.lastAllowed) >= l.cooldown {
		l.lastAllowed = now
		l.pending = false
		return true, 0
	}
	return false, l.cooldown - now.Sub(l.lastAllowed)
}

// Request is Allow that remembers a rejected call. A later TakePending
// returns true once for all rejected calls.
func (l *Limiter) Request() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, _ := l.allowLocked()
	if !ok {
		l.pending = true
	}
	return ok
}

// TakePending reports whether a rejected request is waiting and the
// cooldown has passed. It clears the pending flag when it returns true.
func (l *Limiter) TakePending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.pending {
		return false
	}
	ok, _ := l.allowLocked()
	return ok
}

// Reset clears the limiter state, allowing the next action immediately
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.lastAllowed = time.Time{}
	l.pending = false
	l.mu.Unlock()
}

// Cooldown returns the configured cooldown
func (l *Limiter) Cooldown() time.Duration {
	return l.cooldown
}
