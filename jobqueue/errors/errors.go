package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrScheduleNotFound = errors.New("recurring schedule not found")
	ErrShuttingDown     = errors.New("queue manager is shutting down")
)

// ConfigurationError reports an invalid engine setup: a duplicate processor
// registration, a missing queue definition, or a bad config value. It is
// surfaced synchronously from RegisterProcessor/Initialize.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// QueueNotFoundError is returned by AddJob and the admin operations when the
// named queue was never registered with the manager.
type QueueNotFoundError struct {
	Queue string
}

func (e *QueueNotFoundError) Error() string {
	return fmt.Sprintf("queue not registered: %s", e.Queue)
}

func IsQueueNotFound(err error) bool {
	var qnf *QueueNotFoundError
	return errors.As(err, &qnf)
}

// HandlerExecutionError wraps an error returned (or a panic recovered) from
// a processor, carrying the attempt number it failed on. It is never
// returned to the producer that enqueued the job; it travels through the
// retry pipeline and the observers.
type HandlerExecutionError struct {
	Queue   string
	JobID   string
	Attempt int
	Err     error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("handler for job %s on queue %s failed on attempt %d: %v",
		e.JobID, e.Queue, e.Attempt, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error {
	return e.Err
}

func IsHandlerExecution(err error) bool {
	var hee *HandlerExecutionError
	return errors.As(err, &hee)
}

// RateLimitExceeded is an internal signal between the worker pool and the
// rate limiter. Workers translate it into a wait, never into a job failure,
// and it is not surfaced to producers.
type RateLimitExceeded struct {
	Queue   string
	RetryIn time.Duration
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded for queue %s, next slot in %v", e.Queue, e.RetryIn)
}

func IsRateLimitExceeded(err error) bool {
	var rle *RateLimitExceeded
	return errors.As(err, &rle)
}

// StalledJobError is the internal recovery signal recorded when a job's
// processing lock expired without a heartbeat renewal.
type StalledJobError struct {
	JobID  string
	Stalls int
}

func (e *StalledJobError) Error() string {
	return fmt.Sprintf("job %s stalled (lock expired %d time(s))", e.JobID, e.Stalls)
}

func IsStalledJob(err error) bool {
	var sje *StalledJobError
	return errors.As(err, &sje)
}

// BackendConnectionError reports a failure to reach the backing store.
type BackendConnectionError struct {
	Backend string
	Err     error
}

func (e *BackendConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s backend: %v", e.Backend, e.Err)
}

func (e *BackendConnectionError) Unwrap() error {
	return e.Err
}

func IsBackendConnection(err error) bool {
	var bce *BackendConnectionError
	return errors.As(err, &bce)
}

// BackendOperationError wraps a single failed store operation.
type BackendOperationError struct {
	Operation string
	Err       error
}

func (e *BackendOperationError) Error() string {
	return fmt.Sprintf("backend operation %s failed: %v", e.Operation, e.Err)
}

func (e *BackendOperationError) Unwrap() error {
	return e.Err
}

func IsBackendOperation(err error) bool {
	var boe *BackendOperationError
	return errors.As(err, &boe)
}

// JobNotFoundError carries the ID of a missing job for lookups by ID.
type JobNotFoundError struct {
	JobID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job not found: %s", e.JobID)
}

func IsJobNotFound(err error) bool {
	var jnf *JobNotFoundError
	return errors.As(err, &jnf)
}
