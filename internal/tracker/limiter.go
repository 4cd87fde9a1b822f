// ABOUTME: Leading-edge rate limiter with a trailing evaluation for event-driven sampling
// ABOUTME: Wraps golang.org/x/time/rate with explicit timestamps so tests need no sleeps

package tracker

import (
	"time"

	"golang.org/x/time/rate"
)

// Limiter admits at most one evaluation per interval. Events dropped inside
// an interval leave a pending trailing evaluation that Tick releases once the
// interval has passed.
type Limiter struct {
	lim     *rate.Limiter
	pending bool
}

// NewLimiter creates a limiter allowing one evaluation per interval. A
// non-positive interval admits every event.
func NewLimiter(interval time.Duration) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{lim: rate.NewLimiter(limit, 1)}
}

// Allow reports whether an event at now may be evaluated immediately.
func (l *Limiter) Allow(now time.Time) bool {
	if l.lim.AllowN(now, 1) {
		l.pending = false
		return true
	}
	l.pending = true
	return false
}

// Tick reports whether a pending trailing evaluation is due at now.
func (l *Limiter) Tick(now time.Time) bool {
	if !l.pending {
		return false
	}
	if !l.lim.AllowN(now, 1) {
		return false
	}
	l.pending = false
	return true
}

// Pending reports whether a dropped event awaits a trailing evaluation.
func (l *Limiter) Pending() bool {
	return l.pending
}

// Flush discards the pending trailing evaluation, used when an evaluation
// bypassed the limiter.
func (l *Limiter) Flush() {
	l.pending = false
}
