package jobqueue

import (
	"context"
	"log/slog"
	"time"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
)

// Observers are opt-in: implement only the interfaces you care about and
// register the value with WithObserver. Emission is synchronous and fully
// isolated, a panicking observer is logged and job processing continues.

type JobWaitingObserver interface {
	JobWaiting(ctx context.Context, rec *job.Record)
}

type JobActiveObserver interface {
	JobActive(ctx context.Context, rec *job.Record)
}

type JobProgressObserver interface {
	JobProgress(ctx context.Context, rec *job.Record, progress int)
}

type JobCompletedObserver interface {
	JobCompleted(ctx context.Context, rec *job.Record)
}

type JobRetryingObserver interface {
	JobRetrying(ctx context.Context, rec *job.Record, retryAt time.Time)
}

type JobFailedObserver interface {
	JobFailed(ctx context.Context, rec *job.Record, reason string)
}

type JobStalledObserver interface {
	JobStalled(ctx context.Context, rec *job.Record)
}

// observerSet fans events out to registered observers. Interface checks run
// once at registration, not per event.
type observerSet struct {
	logger *slog.Logger

	waiting   []JobWaitingObserver
	active    []JobActiveObserver
	progress  []JobProgressObserver
	completed []JobCompletedObserver
	retrying  []JobRetryingObserver
	failed    []JobFailedObserver
	stalled   []JobStalledObserver
}

func (s *observerSet) register(o any) {
	if v, ok := o.(JobWaitingObserver); ok {
		s.waiting = append(s.waiting, v)
	}
	if v, ok := o.(JobActiveObserver); ok {
		s.active = append(s.active, v)
	}
	if v, ok := o.(JobProgressObserver); ok {
		s.progress = append(s.progress, v)
	}
	if v, ok := o.(JobCompletedObserver); ok {
		s.completed = append(s.completed, v)
	}
	if v, ok := o.(JobRetryingObserver); ok {
		s.retrying = append(s.retrying, v)
	}
	if v, ok := o.(JobFailedObserver); ok {
		s.failed = append(s.failed, v)
	}
	if v, ok := o.(JobStalledObserver); ok {
		s.stalled = append(s.stalled, v)
	}
}

func (s *observerSet) emit(jobID, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("observer panicked",
				"event", event,
				"job_id", jobID,
				"panic", r)
		}
	}()
	fn()
}

func (s *observerSet) jobWaiting(ctx context.Context, rec *job.Record) {
	for _, o := range s.waiting {
		s.emit(rec.ID, "waiting", func() { o.JobWaiting(ctx, rec) })
	}
}

func (s *observerSet) jobActive(ctx context.Context, rec *job.Record) {
	for _, o := range s.active {
		s.emit(rec.ID, "active", func() { o.JobActive(ctx, rec) })
	}
}

func (s *observerSet) jobProgress(ctx context.Context, rec *job.Record, progress int) {
	for _, o := range s.progress {
		s.emit(rec.ID, "progress", func() { o.JobProgress(ctx, rec, progress) })
	}
}

func (s *observerSet) jobCompleted(ctx context.Context, rec *job.Record) {
	for _, o := range s.completed {
		s.emit(rec.ID, "completed", func() { o.JobCompleted(ctx, rec) })
	}
}

func (s *observerSet) jobRetrying(ctx context.Context, rec *job.Record, retryAt time.Time) {
	for _, o := range s.retrying {
		s.emit(rec.ID, "retrying", func() { o.JobRetrying(ctx, rec, retryAt) })
	}
}

func (s *observerSet) jobFailed(ctx context.Context, rec *job.Record, reason string) {
	for _, o := range s.failed {
		s.emit(rec.ID, "failed", func() { o.JobFailed(ctx, rec, reason) })
	}
}

func (s *observerSet) jobStalled(ctx context.Context, rec *job.Record) {
	for _, o := range s.stalled {
		s.emit(rec.ID, "stalled", func() { o.JobStalled(ctx, rec) })
	}
}

// LogObserver logs every lifecycle transition through slog. Useful as a
// development default and as a template for custom observers.
type LogObserver struct {
	Logger *slog.Logger
}

func (l *LogObserver) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *LogObserver) JobWaiting(_ context.Context, rec *job.Record) {
	l.logger().Info("job waiting", "queue", rec.Queue, "job_id", rec.ID, "name", rec.Name)
}

func (l *LogObserver) JobActive(_ context.Context, rec *job.Record) {
	l.logger().Info("job active", "queue", rec.Queue, "job_id", rec.ID, "attempt", rec.AttemptsMade)
}

func (l *LogObserver) JobProgress(_ context.Context, rec *job.Record, progress int) {
	l.logger().Debug("job progress", "queue", rec.Queue, "job_id", rec.ID, "progress", progress)
}

func (l *LogObserver) JobCompleted(_ context.Context, rec *job.Record) {
	l.logger().Info("job completed", "queue", rec.Queue, "job_id", rec.ID, "attempts", rec.AttemptsMade)
}

func (l *LogObserver) JobRetrying(_ context.Context, rec *job.Record, retryAt time.Time) {
	l.logger().Warn("job retrying",
		"queue", rec.Queue,
		"job_id", rec.ID,
		"attempt", rec.AttemptsMade,
		"retry_at", retryAt)
}

func (l *LogObserver) JobFailed(_ context.Context, rec *job.Record, reason string) {
	l.logger().Error("job failed", "queue", rec.Queue, "job_id", rec.ID, "reason", reason)
}

func (l *LogObserver) JobStalled(_ context.Context, rec *job.Record) {
	l.logger().Warn("job stalled", "queue", rec.Queue, "job_id", rec.ID, "stalls", rec.Stalls)
}
