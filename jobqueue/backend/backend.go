// Package backend defines the persistence contract for the job engine and
// ships two implementations: Redis for production and an in-memory store
// for tests and development.
//
// Per queue the store keeps three ordered collections: pending (waiting and
// delayed records, ordered by priority then enqueue sequence), active (job
// id to processing-lock expiry) and a bounded completed/failed history
// trimmed by age and count. Dequeue is the single linearizable claim
// operation: two workers can never claim the same record.
package backend

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
)

type Backend interface {
	// Enqueue persists a new record in waiting state, or delayed when its
	// ScheduledAt lies in the future. The backend assigns the sequence
	// number that breaks priority ties.
	Enqueue(ctx context.Context, rec *job.Record) error

	// Dequeue atomically claims the next eligible waiting record (lowest
	// priority value first, enqueue order within a priority), marks it
	// active, increments AttemptsMade and sets its processing lock to
	// expire after lockTTL. Returns nil when the queue is empty or paused.
	Dequeue(ctx context.Context, queue string, lockTTL time.Duration) (*job.Record, error)

	// Heartbeat renews the processing lock of an active record.
	Heartbeat(ctx context.Context, queue, jobID string, lockTTL time.Duration) error

	// Complete moves an active record to the completed history, recording
	// the result and trimming the history per retention. Returns
	// ErrJobNotFound if the record is no longer active (lock lost).
	Complete(ctx context.Context, rec *job.Record, result json.RawMessage, retention job.Retention) error

	// Fail moves an active record to the failed history terminally.
	Fail(ctx context.Context, rec *job.Record, reason string, retention job.Retention) error

	// Delay reschedules an active record for a retry at runAt, moving it
	// to the delayed collection.
	Delay(ctx context.Context, rec *job.Record, runAt time.Time) error

	// SetProgress records handler-reported progress (0-100) on an active
	// record the caller owns. Returns ErrJobNotFound if the record is no
	// longer active.
	SetProgress(ctx context.Context, rec *job.Record, progress int) error

	// PromoteDelayed moves up to limit due delayed records back to
	// waiting, preserving their original priority. Returns how many moved.
	PromoteDelayed(ctx context.Context, queue string, limit int) (int, error)

	// ExpiredActive returns active records whose processing lock expired
	// without renewal (suspected worker crash). The engine decides their
	// fate through RequeueStalled, Delay or Fail.
	ExpiredActive(ctx context.Context, queue string) ([]*job.Record, error)

	// RequeueStalled moves an expired active record back to waiting
	// without consuming an attempt. Returns false if the record was
	// already claimed or removed by someone else.
	RequeueStalled(ctx context.Context, rec *job.Record) (bool, error)

	// DrainActive moves every active record of a queue back to waiting.
	// Called once at shutdown after the grace window so in-flight work is
	// not lost. Returns how many records moved.
	DrainActive(ctx context.Context, queue string) (int, error)

	GetJob(ctx context.Context, queue, jobID string) (*job.Record, error)
	ListHistory(ctx context.Context, queue string, state job.State, offset, limit int) ([]*job.Record, error)

	EnsureQueue(ctx context.Context, queue string) error
	Queues(ctx context.Context) ([]string, error)
	Pause(ctx context.Context, queue string) error
	Resume(ctx context.Context, queue string) error
	IsPaused(ctx context.Context, queue string) (bool, error)
	Stats(ctx context.Context, queue string) (*QueueStats, error)

	// UpsertSchedule persists a recurring schedule keyed by its ID.
	UpsertSchedule(ctx context.Context, s *Schedule) error
	ListSchedules(ctx context.Context) ([]*Schedule, error)

	// ClaimSchedule atomically fires a due schedule: if the stored
	// NextRunAt is not after due, it is advanced to next and the call
	// returns true. Exactly one caller wins per trigger tick, also across
	// restarts.
	ClaimSchedule(ctx context.Context, s *Schedule, due, next time.Time) (bool, error)
	DeleteSchedule(ctx context.Context, scheduleID string) error

	Ping(ctx context.Context) error
	Close() error
}

// QueueStats holds per-state record counts for one queue.
type QueueStats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Delayed   int64 `json:"delayed"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Paused    bool  `json:"paused"`
}

// Schedule is a persisted recurring job definition. NextRunAt survives
// restarts so a manager coming back mid-window fires at most once.
type Schedule struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	JobName    string          `json:"job_name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Expression string          `json:"expression"`
	Options    job.Options     `json:"options"`
	NextRunAt  time.Time       `json:"next_run_at"`

	// NextRunSecs mirrors NextRunAt as a unix timestamp so storage-side
	// claim logic can compare due times without parsing RFC 3339.
	NextRunSecs float64 `json:"next_run_secs"`

	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
