// Package jobqueue implements a background job-processing engine shared by
// the org's web applications. A Manager owns named queues, each with a
// registered processor and a pool of workers; records are persisted through
// a pluggable backend (Redis in production, in-memory for tests), retried
// with configurable backoff, rate limited per queue and optionally enqueued
// on cron schedules.
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/backend"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/config"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/errors"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/ratelimit"
)

// Processor handles every job of one queue, dispatching on the record's
// Name. A non-nil error marks the attempt failed; the engine decides
// between a backoff retry and terminal failure.
type Processor func(ctx context.Context, j *ActiveJob) error

type queueRuntime struct {
	cfg       config.QueueConfig
	processor Processor
	limiter   *ratelimit.Limiter
	defaults  job.Defaults
}

type Manager struct {
	config    *config.Config
	backend   backend.Backend
	logger    *slog.Logger
	observers *observerSet

	mu     sync.RWMutex
	queues map[string]*queueRuntime

	initialized    atomic.Bool
	isShuttingDown atomic.Bool
	shutdownOnce   sync.Once

	cancelLoops context.CancelFunc
	loopGroup   *errgroup.Group

	// workerGate orders workerWG.Add against Shutdown's Wait: workers
	// register under the read lock after re-checking the shutdown flag,
	// Shutdown flips the flag under the write lock before waiting.
	workerGate sync.RWMutex
	workerWG   sync.WaitGroup
	activeJobs atomic.Int64

	cronParser cron.Parser
}

type Option func(*Manager)

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver registers a lifecycle observer. The value may implement any
// subset of the observer interfaces.
func WithObserver(o any) Option {
	return func(m *Manager) {
		m.observers.register(o)
	}
}

func NewManager(ctx context.Context, cfg *config.Config, opts ...Option) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	be, err := cfg.CreateBackend(ctx)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		config:     cfg,
		backend:    be,
		logger:     slog.Default(),
		queues:     make(map[string]*queueRuntime),
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	m.observers = &observerSet{}
	for _, opt := range opts {
		opt(m)
	}
	m.observers.logger = m.logger
	return m, nil
}

func (m *Manager) Backend() backend.Backend {
	return m.backend
}

// RegisterProcessor declares a queue and binds its processor. Must be called
// before Initialize; a queue can be registered only once.
func (m *Manager) RegisterProcessor(qcfg config.QueueConfig, proc Processor) error {
	if qcfg.Name == "" {
		return &errors.ConfigurationError{Field: "queue", Message: "name cannot be empty"}
	}
	if proc == nil {
		return &errors.ConfigurationError{Field: "processor", Message: "cannot be nil for queue " + qcfg.Name}
	}
	if m.initialized.Load() {
		return &errors.ConfigurationError{Field: "queue", Message: "cannot register " + qcfg.Name + " after Initialize"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.queues[qcfg.Name]; exists {
		return &errors.ConfigurationError{Field: "queue", Message: "processor already registered for " + qcfg.Name}
	}

	if qcfg.Concurrency <= 0 {
		qcfg.Concurrency = m.config.DefaultConcurrency
	}

	m.queues[qcfg.Name] = &queueRuntime{
		cfg:       qcfg,
		processor: proc,
		limiter:   ratelimit.New(qcfg.RateLimit),
		defaults:  m.config.JobDefaults(qcfg),
	}
	return nil
}

// Initialize starts the worker pools, the delayed-job promoter and the
// recurring-schedule loop. Calling it again is a no-op with a warning.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.initialized.CompareAndSwap(false, true) {
		m.logger.Warn("manager already initialized, ignoring repeat call")
		return nil
	}

	m.mu.RLock()
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		if err := m.backend.EnsureQueue(ctx, name); err != nil {
			return err
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancelLoops = cancel
	g, loopCtx := errgroup.WithContext(loopCtx)
	m.loopGroup = g

	m.mu.RLock()
	for name, rt := range m.queues {
		m.startQueue(loopCtx, name, rt)
	}
	m.mu.RUnlock()

	g.Go(func() error {
		m.runPromoter(loopCtx)
		return nil
	})
	g.Go(func() error {
		m.runScheduleLoop(loopCtx)
		return nil
	})

	m.logger.Info("job engine started",
		"queues", len(names),
		"driver", string(m.config.Driver))
	return nil
}

// AddJob enqueues one job on a registered queue and returns its id. Options
// zero fields inherit the queue defaults; a positive Delay parks the record
// as delayed. Enqueueing on a paused queue is accepted, the record just
// waits until the queue resumes.
func (m *Manager) AddJob(ctx context.Context, queue, name string, payload any, opts job.Options) (string, error) {
	if m.isShuttingDown.Load() {
		return "", errors.ErrShuttingDown
	}

	rt := m.runtime(queue)
	if rt == nil {
		return "", &errors.QueueNotFoundError{Queue: queue}
	}

	rec, err := m.buildRecord(queue, name, payload, rt.defaults, opts)
	if err != nil {
		return "", err
	}

	if err := m.backend.Enqueue(ctx, rec); err != nil {
		return "", err
	}

	if rec.State == job.StateWaiting {
		m.observers.jobWaiting(ctx, rec)
	}
	m.logger.Debug("job enqueued",
		"queue", queue,
		"job_id", rec.ID,
		"name", name,
		"state", string(rec.State))
	return rec.ID, nil
}

func (m *Manager) buildRecord(queue, name string, payload any, defaults job.Defaults, opts job.Options) (*job.Record, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &errors.ConfigurationError{Field: "payload", Message: fmt.Sprintf("failed to marshal: %v", err)}
		}
		raw = data
	}

	priority, attempts, backoffPolicy, timeout := defaults.Merge(opts)

	now := time.Now()
	rec := &job.Record{
		ID:            uuid.New().String(),
		Queue:         queue,
		Name:          name,
		Payload:       raw,
		Priority:      priority,
		AttemptsLimit: attempts,
		Backoff:       backoffPolicy,
		State:         job.StateWaiting,
		Timeout:       timeout,
		ScheduledAt:   now,
		CreatedAt:     now,
	}
	if opts.Delay > 0 {
		rec.State = job.StateDelayed
		rec.ScheduledAt = now.Add(opts.Delay)
	}
	return rec, nil
}

// AddRecurring registers a cron schedule that enqueues a job on every
// trigger. The expression uses standard five-field cron syntax plus
// descriptors like @hourly. Returns the schedule id.
func (m *Manager) AddRecurring(ctx context.Context, queue, name, expression string, payload any, opts job.Options) (string, error) {
	if m.isShuttingDown.Load() {
		return "", errors.ErrShuttingDown
	}

	if m.runtime(queue) == nil {
		return "", &errors.QueueNotFoundError{Queue: queue}
	}

	sched, err := m.cronParser.Parse(expression)
	if err != nil {
		return "", &errors.ConfigurationError{Field: "expression", Message: err.Error()}
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return "", &errors.ConfigurationError{Field: "payload", Message: fmt.Sprintf("failed to marshal: %v", err)}
		}
		raw = data
	}

	now := time.Now()
	s := &backend.Schedule{
		ID:         uuid.New().String(),
		Queue:      queue,
		JobName:    name,
		Payload:    raw,
		Expression: expression,
		Options:    opts,
		NextRunAt:  sched.Next(now),
		CreatedAt:  now,
	}
	if err := m.backend.UpsertSchedule(ctx, s); err != nil {
		return "", err
	}

	m.logger.Info("recurring schedule registered",
		"schedule_id", s.ID,
		"queue", queue,
		"name", name,
		"expression", expression,
		"next_run_at", s.NextRunAt)
	return s.ID, nil
}

func (m *Manager) RemoveRecurring(ctx context.Context, scheduleID string) error {
	return m.backend.DeleteSchedule(ctx, scheduleID)
}

func (m *Manager) ListRecurring(ctx context.Context) ([]*backend.Schedule, error) {
	return m.backend.ListSchedules(ctx)
}

func (m *Manager) GetJob(ctx context.Context, queue, jobID string) (*job.Record, error) {
	return m.backend.GetJob(ctx, queue, jobID)
}

func (m *Manager) ListHistory(ctx context.Context, queue string, state job.State, offset, limit int) ([]*job.Record, error) {
	return m.backend.ListHistory(ctx, queue, state, offset, limit)
}

func (m *Manager) QueueStats(ctx context.Context, queue string) (*backend.QueueStats, error) {
	if m.runtime(queue) == nil {
		return nil, &errors.QueueNotFoundError{Queue: queue}
	}
	return m.backend.Stats(ctx, queue)
}

// AllStats returns stats for every registered queue.
func (m *Manager) AllStats(ctx context.Context) (map[string]*backend.QueueStats, error) {
	m.mu.RLock()
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	m.mu.RUnlock()

	stats := make(map[string]*backend.QueueStats, len(names))
	for _, name := range names {
		s, err := m.backend.Stats(ctx, name)
		if err != nil {
			return nil, err
		}
		stats[name] = s
	}
	return stats, nil
}

func (m *Manager) Queues() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	return names
}

// PauseQueue stops workers from pulling new jobs off the queue. In-flight
// jobs finish normally and enqueueing stays open.
func (m *Manager) PauseQueue(ctx context.Context, queue string) error {
	if m.runtime(queue) == nil {
		return &errors.QueueNotFoundError{Queue: queue}
	}
	if err := m.backend.Pause(ctx, queue); err != nil {
		return err
	}
	m.logger.Info("queue paused", "queue", queue)
	return nil
}

func (m *Manager) ResumeQueue(ctx context.Context, queue string) error {
	if m.runtime(queue) == nil {
		return &errors.QueueNotFoundError{Queue: queue}
	}
	if err := m.backend.Resume(ctx, queue); err != nil {
		return err
	}
	m.logger.Info("queue resumed", "queue", queue)
	return nil
}

// HealthStatus is the engine's self-assessment: backend reachability plus
// per-queue threshold checks.
type HealthStatus struct {
	Healthy bool                           `json:"healthy"`
	Issues  []string                       `json:"issues,omitempty"`
	Queues  map[string]*backend.QueueStats `json:"queues,omitempty"`
}

func (m *Manager) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true}

	if err := m.backend.Ping(ctx); err != nil {
		status.Healthy = false
		status.Issues = append(status.Issues, fmt.Sprintf("backend unreachable: %v", err))
		return status
	}

	stats, err := m.AllStats(ctx)
	if err != nil {
		status.Healthy = false
		status.Issues = append(status.Issues, fmt.Sprintf("stats unavailable: %v", err))
		return status
	}
	status.Queues = stats

	for name, s := range stats {
		if m.config.HealthMaxWaiting > 0 && s.Waiting > m.config.HealthMaxWaiting {
			status.Healthy = false
			status.Issues = append(status.Issues,
				fmt.Sprintf("queue %s backlog: %d waiting (threshold %d)", name, s.Waiting, m.config.HealthMaxWaiting))
		}
		if m.config.HealthMaxFailed > 0 && s.Failed > m.config.HealthMaxFailed {
			status.Healthy = false
			status.Issues = append(status.Issues,
				fmt.Sprintf("queue %s failures: %d failed (threshold %d)", name, s.Failed, m.config.HealthMaxFailed))
		}
	}
	return status
}

// Shutdown stops the engine: no new claims, in-flight jobs get up to
// ShutdownGrace to finish, whatever remains active is requeued to waiting so
// the next start picks it up. Safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	var shutdownErr error
	m.shutdownOnce.Do(func() {
		m.workerGate.Lock()
		m.isShuttingDown.Store(true)
		m.workerGate.Unlock()
		m.logger.Info("shutting down job engine")

		if m.cancelLoops != nil {
			m.cancelLoops()
		}

		done := make(chan struct{})
		go func() {
			m.workerWG.Wait()
			close(done)
		}()

		finished := false
		select {
		case <-done:
			finished = true
			m.logger.Info("all workers finished gracefully")
		case <-time.After(m.config.ShutdownGrace):
			m.logger.Warn("shutdown grace expired",
				"active_jobs", m.activeJobs.Load())
		case <-ctx.Done():
			shutdownErr = fmt.Errorf("shutdown cancelled: %w", ctx.Err())
		}

		// Overrunning handlers keep the pool goroutines busy past the grace
		// window; waiting for them here would defeat the requeue below, so
		// the loop group is only drained after a clean finish.
		if finished && m.loopGroup != nil {
			_ = m.loopGroup.Wait()
		}

		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, name := range m.Queues() {
			moved, err := m.backend.DrainActive(drainCtx, name)
			if err != nil {
				m.logger.Error("failed to requeue in-flight jobs", "queue", name, "error", err)
				continue
			}
			if moved > 0 {
				m.logger.Info("requeued in-flight jobs", "queue", name, "count", moved)
			}
		}

		if err := m.backend.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	})
	return shutdownErr
}

func (m *Manager) runtime(queue string) *queueRuntime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queues[queue]
}
