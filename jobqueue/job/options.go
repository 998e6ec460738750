package job

import "time"

// Options tunes a single enqueue. Zero-valued fields inherit the queue's
// defaults when the manager builds the record.
type Options struct {
	// Priority orders dequeue; lower runs first. Use PrioritySet to
	// distinguish an explicit 0 from "inherit the queue default".
	Priority    int  `json:"priority,omitempty"`
	PrioritySet bool `json:"priority_set,omitempty"`

	// Attempts is the total execution budget including the first run.
	Attempts int `json:"attempts,omitempty"`

	Backoff *BackoffPolicy `json:"backoff,omitempty"`

	// Delay defers the first execution; the record starts out delayed.
	Delay time.Duration `json:"delay,omitempty"`

	// Timeout bounds one handler invocation.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Retention bounds the completed/failed history per queue. Records are
// evicted when either bound is exceeded, oldest first.
type Retention struct {
	MaxAge   time.Duration
	MaxCount int
}

// Defaults carries a queue's default job options and retention windows.
type Defaults struct {
	Priority        int
	Attempts        int
	Backoff         BackoffPolicy
	Timeout         time.Duration
	CompletedWindow Retention
	FailedWindow    Retention
}

// Merge applies per-enqueue options over the queue defaults and returns the
// effective values for a new record.
func (d Defaults) Merge(opts Options) (priority, attempts int, backoff BackoffPolicy, timeout time.Duration) {
	priority = d.Priority
	if opts.PrioritySet {
		priority = opts.Priority
	}
	attempts = d.Attempts
	if opts.Attempts > 0 {
		attempts = opts.Attempts
	}
	backoff = d.Backoff
	if opts.Backoff != nil {
		backoff = *opts.Backoff
	}
	timeout = d.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	return priority, attempts, backoff, timeout
}
