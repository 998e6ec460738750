package jobqueue

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/backoff"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/errors"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
)

// startQueue launches the per-queue worker goroutines and the reaper that
// recovers jobs whose workers died.
func (m *Manager) startQueue(ctx context.Context, name string, rt *queueRuntime) {
	for i := 0; i < rt.cfg.Concurrency; i++ {
		m.loopGroup.Go(func() error {
			return wait.PollUntilContextCancel(
				ctx,
				m.config.PollInterval,
				true,
				func(ctx context.Context) (bool, error) {
					return m.workerIteration(ctx, name, rt)
				},
			)
		})
	}

	m.loopGroup.Go(func() error {
		m.runReaper(ctx, name, rt)
		return nil
	})
}

// workerIteration drains the queue until it is empty, rate limited, or the
// context ends. Returning (false, nil) parks the worker for PollInterval.
func (m *Manager) workerIteration(ctx context.Context, name string, rt *queueRuntime) (bool, error) {
	for {
		if m.isShuttingDown.Load() {
			return true, nil
		}
		if ctx.Err() != nil {
			return true, nil
		}

		// The rate slot is claimed before the dequeue so concurrent workers
		// cannot collectively overshoot the window; an empty pull refunds it.
		ok, retryIn := rt.limiter.TryAcquire()
		if !ok {
			m.logger.Debug("worker parked",
				"queue", name,
				"reason", &errors.RateLimitExceeded{Queue: name, RetryIn: retryIn})
			m.sleep(ctx, retryIn)
			return false, nil
		}

		rec, err := m.backend.Dequeue(ctx, name, m.config.LockTTL)
		if err != nil {
			rt.limiter.Refund()
			if ctx.Err() == nil {
				m.logger.Error("dequeue failed", "queue", name, "error", err)
			}
			return false, nil
		}
		if rec == nil {
			rt.limiter.Refund()
			return false, nil
		}

		m.processOne(ctx, rt, rec)
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// processOne runs a claimed record through its processor, renewing the
// processing lock until the handler returns, then settles the outcome.
func (m *Manager) processOne(ctx context.Context, rt *queueRuntime, rec *job.Record) {
	// A claim can race Shutdown's flag flip. The gate re-check hands such
	// a record straight back instead of registering with a wait group that
	// may already be mid-Wait.
	m.workerGate.RLock()
	if m.isShuttingDown.Load() {
		m.workerGate.RUnlock()
		m.handBackClaim(rec)
		return
	}
	m.workerWG.Add(1)
	m.activeJobs.Add(1)
	m.workerGate.RUnlock()
	defer func() {
		m.activeJobs.Add(-1)
		m.workerWG.Done()
	}()

	m.observers.jobActive(ctx, rec)

	timeout := rec.Timeout
	if timeout <= 0 {
		timeout = m.config.DefaultJobTimeout
	}

	// The job context is detached from the loop context: an engine shutdown
	// must not cancel a running handler, the grace window handles that.
	jobCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go m.renewLock(jobCtx, rec, heartbeatDone)
	defer func() {
		cancel()
		<-heartbeatDone
	}()

	active := &ActiveJob{Record: rec, manager: m}

	errChan := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("handler panicked: %v", r)
			}
		}()
		errChan <- rt.processor(jobCtx, active)
	}()

	// The channel is buffered so a handler that ignores its context can still
	// finish its send and exit after the timeout settles without it.
	var execErr error
	select {
	case err := <-errChan:
		execErr = err
	case <-jobCtx.Done():
		execErr = fmt.Errorf("handler timeout after %v", timeout)
	}

	// Stop renewing before settling so the lock check inside the settle is
	// the last word on ownership.
	cancel()

	settleCtx, settleCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer settleCancel()

	if execErr == nil {
		m.settleSuccess(settleCtx, rt, rec)
		return
	}
	m.settleFailure(settleCtx, rt, rec, &errors.HandlerExecutionError{
		Queue:   rec.Queue,
		JobID:   rec.ID,
		Attempt: rec.AttemptsMade,
		Err:     execErr,
	})
}

// handBackClaim returns an unprocessed claim to waiting with its attempt
// refunded, as if the dequeue never happened.
func (m *Manager) handBackClaim(rec *job.Record) {
	relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if rec.AttemptsMade > 0 {
		rec.AttemptsMade--
	}
	if _, err := m.backend.RequeueStalled(relCtx, rec); err != nil {
		m.logger.Error("could not hand back claimed job",
			"queue", rec.Queue,
			"job_id", rec.ID,
			"error", err)
	}
}

// renewLock keeps the record's processing lock alive while its handler runs.
func (m *Manager) renewLock(ctx context.Context, rec *job.Record, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hbCtx, cancel := context.WithTimeout(context.Background(), m.config.HeartbeatInterval)
			err := m.backend.Heartbeat(hbCtx, rec.Queue, rec.ID, m.config.LockTTL)
			cancel()
			if err != nil {
				m.logger.Warn("lock renewal failed",
					"queue", rec.Queue,
					"job_id", rec.ID,
					"error", err)
			}
		}
	}
}

func (m *Manager) settleSuccess(ctx context.Context, rt *queueRuntime, rec *job.Record) {
	if err := m.backend.Complete(ctx, rec, rec.Result, rt.defaults.CompletedWindow); err != nil {
		// Lock lost mid-flight: the reaper already took the record over, the
		// redelivery will run the handler again.
		m.logger.Warn("could not complete job, lock lost",
			"queue", rec.Queue,
			"job_id", rec.ID,
			"error", err)
		return
	}
	m.observers.jobCompleted(ctx, rec)
	m.logger.Debug("job completed",
		"queue", rec.Queue,
		"job_id", rec.ID,
		"attempts", rec.AttemptsMade)
}

// settleFailure applies the retry policy: schedule a backoff retry while the
// attempt budget lasts, otherwise fail terminally. Handler errors never
// propagate to the producer.
func (m *Manager) settleFailure(ctx context.Context, rt *queueRuntime, rec *job.Record, execErr error) {
	m.logger.Warn("job attempt failed",
		"queue", rec.Queue,
		"job_id", rec.ID,
		"attempt", rec.AttemptsMade,
		"limit", rec.AttemptsLimit,
		"error", execErr)

	if rec.RetriesExhausted() {
		reason := execErr.Error()
		rec.FailureReason = reason
		if err := m.backend.Fail(ctx, rec, reason, rt.defaults.FailedWindow); err != nil {
			m.logger.Warn("could not fail job, lock lost",
				"queue", rec.Queue,
				"job_id", rec.ID,
				"error", err)
			return
		}
		m.observers.jobFailed(ctx, rec, reason)
		return
	}

	delay := backoff.ForPolicy(rec.Backoff).Delay(rec.AttemptsMade)
	retryAt := time.Now().Add(delay)
	if err := m.backend.Delay(ctx, rec, retryAt); err != nil {
		m.logger.Warn("could not schedule retry, lock lost",
			"queue", rec.Queue,
			"job_id", rec.ID,
			"error", err)
		return
	}
	m.observers.jobRetrying(ctx, rec, retryAt)
}

// runReaper recovers jobs whose processing lock expired without renewal.
// The first expiry of a record is treated as a stall: it goes straight back
// to waiting and the interrupted attempt is not charged. A repeat expiry
// counts as a failed attempt and follows the normal retry policy.
func (m *Manager) runReaper(ctx context.Context, name string, rt *queueRuntime) {
	ticker := time.NewTicker(m.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapExpired(ctx, name, rt)
		}
	}
}

func (m *Manager) reapExpired(ctx context.Context, name string, rt *queueRuntime) {
	expired, err := m.backend.ExpiredActive(ctx, name)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("reaper scan failed", "queue", name, "error", err)
		}
		return
	}

	for _, rec := range expired {
		if rec.Stalls == 0 {
			rec.Stalls = 1
			if rec.AttemptsMade > 0 {
				rec.AttemptsMade--
			}
			requeued, err := m.backend.RequeueStalled(ctx, rec)
			if err != nil {
				m.logger.Error("stall requeue failed",
					"queue", name,
					"job_id", rec.ID,
					"error", err)
				continue
			}
			if requeued {
				m.observers.jobStalled(ctx, rec)
				m.logger.Warn("job stalled, requeued",
					"queue", name,
					"job_id", rec.ID)
			}
			continue
		}

		rec.Stalls++
		m.settleFailure(ctx, rt, rec, &errors.StalledJobError{
			JobID:  rec.ID,
			Stalls: rec.Stalls,
		})
	}
}
