package job

import (
	"encoding/json"
	"time"
)

type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateStalled   State = "stalled"
)

// Terminal reports whether a record in this state will never run again.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
)

// BackoffPolicy describes the delay applied between retry attempts.
// Fixed waits Delay every time; exponential waits Delay * 2^(attempt-1).
type BackoffPolicy struct {
	Type  BackoffType   `json:"type"`
	Delay time.Duration `json:"delay"`
}

// Record describes one unit of asynchronous work. A record belongs to
// exactly one queue for its lifetime; workers mutate only its state and
// retry bookkeeping, producers never touch it after enqueue.
type Record struct {
	ID    string `json:"id"`
	Queue string `json:"queue"`

	// Name discriminates job kinds inside one queue; the queue's processor
	// switches on it.
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Priority orders dequeue within a queue: lower values run first,
	// ties broken by Seq (enqueue order).
	Priority int   `json:"priority"`
	Seq      int64 `json:"seq"`

	AttemptsMade  int           `json:"attempts_made"`
	AttemptsLimit int           `json:"attempts_limit"`
	Backoff       BackoffPolicy `json:"backoff"`

	State  State `json:"state"`
	Stalls int   `json:"stalls,omitempty"`

	// Timeout bounds a single handler invocation. Zero means the engine
	// default applies.
	Timeout time.Duration `json:"timeout,omitempty"`

	Progress int `json:"progress,omitempty"`

	ScheduledAt time.Time  `json:"scheduled_at"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`

	Result        json.RawMessage `json:"result,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// RetriesExhausted reports whether the record has used up its attempt budget.
func (r *Record) RetriesExhausted() bool {
	return r.AttemptsMade >= r.AttemptsLimit
}
