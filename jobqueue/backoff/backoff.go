// Package backoff computes retry delays. Strategies are stateless and safe
// for concurrent use.
package backoff

import (
	"time"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
)

// Strategy computes the delay before retry attempt n (1-indexed: attempt 1
// is the first retry after the initial failure).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Fixed always waits the same interval.
type Fixed struct {
	Interval time.Duration
}

func NewFixed(interval time.Duration) *Fixed {
	return &Fixed{Interval: interval}
}

func (f *Fixed) Delay(_ int) time.Duration {
	return f.Interval
}

// Exponential doubles the delay each attempt:
// Delay = min(Base * 2^(attempt-1), Max). Max <= 0 means uncapped.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

func NewExponential(base, maxDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Max: maxDelay}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := e.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if e.Max > 0 && d >= e.Max {
			return e.Max
		}
	}
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ForPolicy maps a record's backoff descriptor to a strategy.
func ForPolicy(p job.BackoffPolicy) Strategy {
	if p.Type == job.BackoffExponential {
		return NewExponential(p.Delay, 0)
	}
	return NewFixed(p.Delay)
}
