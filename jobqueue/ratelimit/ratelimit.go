// Package ratelimit caps job starts per queue inside a sliding time window.
package ratelimit

import (
	"sync"
	"time"
)

// Limit configures a limiter: at most Max job starts inside any window of
// length Per. A zero Max or Per means unlimited.
type Limit struct {
	Max int
	Per time.Duration
}

func (l Limit) enabled() bool {
	return l.Max > 0 && l.Per > 0
}

// Limiter is a sliding-log rate limiter. It remembers the timestamps of the
// last Max grants and refuses a new grant while the oldest of them is still
// inside the window, so no sliding window of length Per ever sees more than
// Max starts. Safe for concurrent use.
type Limiter struct {
	limit Limit

	mu     sync.Mutex
	starts []time.Time // ring buffer of grant times, capacity Max
	head   int
	count  int

	now func() time.Time
}

// New creates a limiter for the given limit. A disabled limit (zero Max or
// Per) yields a limiter whose TryAcquire always succeeds.
func New(limit Limit) *Limiter {
	l := &Limiter{limit: limit, now: time.Now}
	if limit.enabled() {
		l.starts = make([]time.Time, limit.Max)
	}
	return l
}

// TryAcquire records a job start if the window has room. When denied it
// returns the wait until the next slot frees, so callers can park instead
// of busy-polling.
func (l *Limiter) TryAcquire() (ok bool, retryIn time.Duration) {
	if !l.limit.enabled() {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.limit.Per)

	// Expire grants that slid out of the window.
	for l.count > 0 && !l.starts[l.head].After(cutoff) {
		l.head = (l.head + 1) % l.limit.Max
		l.count--
	}

	if l.count >= l.limit.Max {
		oldest := l.starts[l.head]
		return false, oldest.Add(l.limit.Per).Sub(now)
	}

	l.starts[(l.head+l.count)%l.limit.Max] = now
	l.count++
	return true, 0
}

// Refund releases the most recent grant. Callers that acquire a slot before
// knowing whether work exists hand it back when the queue turns out empty.
func (l *Limiter) Refund() {
	if !l.limit.enabled() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count > 0 {
		l.count--
	}
}
