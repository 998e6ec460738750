package backend

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/errors"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
)

var _ Backend = (*MemoryBackend)(nil)

// historyEntry pairs a terminal record with its eviction deadline.
type historyEntry struct {
	rec        *job.Record
	finishedAt time.Time
}

type memoryQueue struct {
	waiting []*job.Record // kept sorted by (priority asc, seq asc)
	delayed []*job.Record
	active  map[string]*memoryLock
	history map[job.State][]historyEntry
	paused  bool
}

type memoryLock struct {
	rec       *job.Record
	expiresAt time.Time
}

// MemoryBackend is a fully in-memory Backend. Safe for concurrent use.
// Intended for unit tests and local development; nothing survives a restart.
type MemoryBackend struct {
	mu        sync.Mutex
	queues    map[string]*memoryQueue
	schedules map[string]*Schedule
	seq       int64
	closed    bool

	now func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		queues:    make(map[string]*memoryQueue),
		schedules: make(map[string]*Schedule),
		now:       time.Now,
	}
}

// queue returns the state for a queue, creating it on first touch.
// Caller must hold mu.
func (m *MemoryBackend) queue(name string) *memoryQueue {
	q, ok := m.queues[name]
	if !ok {
		q = &memoryQueue{
			active:  make(map[string]*memoryLock),
			history: make(map[job.State][]historyEntry),
		}
		m.queues[name] = q
	}
	return q
}

func copyRecord(rec *job.Record) *job.Record {
	cp := *rec
	return &cp
}

func (m *MemoryBackend) Enqueue(_ context.Context, rec *job.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	rec.Seq = m.seq

	q := m.queue(rec.Queue)
	cp := copyRecord(rec)
	if cp.State == job.StateDelayed {
		q.delayed = append(q.delayed, cp)
		return nil
	}
	cp.State = job.StateWaiting
	insertWaiting(q, cp)
	return nil
}

// insertWaiting keeps the waiting slice ordered by (priority asc, seq asc).
func insertWaiting(q *memoryQueue, rec *job.Record) {
	i := sort.Search(len(q.waiting), func(i int) bool {
		w := q.waiting[i]
		if w.Priority != rec.Priority {
			return w.Priority > rec.Priority
		}
		return w.Seq > rec.Seq
	})
	q.waiting = append(q.waiting, nil)
	copy(q.waiting[i+1:], q.waiting[i:])
	q.waiting[i] = rec
}

func (m *MemoryBackend) Dequeue(_ context.Context, queue string, lockTTL time.Duration) (*job.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queue]
	if !ok || q.paused || len(q.waiting) == 0 {
		return nil, nil
	}

	rec := q.waiting[0]
	q.waiting = q.waiting[1:]

	now := m.now()
	rec.State = job.StateActive
	rec.AttemptsMade++
	rec.ProcessedAt = &now
	q.active[rec.ID] = &memoryLock{rec: rec, expiresAt: now.Add(lockTTL)}
	return copyRecord(rec), nil
}

func (m *MemoryBackend) Heartbeat(_ context.Context, queue, jobID string, lockTTL time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queue]
	if !ok {
		return &errors.QueueNotFoundError{Queue: queue}
	}
	lock, ok := q.active[jobID]
	if !ok {
		return errors.ErrJobNotFound
	}
	lock.expiresAt = m.now().Add(lockTTL)
	return nil
}

// release removes a record from the active set. Returns false when the lock
// was already lost, which makes every terminal transition a compare-and-swap
// keyed by job id.
func (q *memoryQueue) release(jobID string) bool {
	if _, ok := q.active[jobID]; !ok {
		return false
	}
	delete(q.active, jobID)
	return true
}

func (m *MemoryBackend) Complete(_ context.Context, rec *job.Record, result json.RawMessage, retention job.Retention) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queue(rec.Queue)
	if !q.release(rec.ID) {
		return errors.ErrJobNotFound
	}

	now := m.now()
	cp := copyRecord(rec)
	cp.State = job.StateCompleted
	cp.Result = result
	cp.FinishedAt = &now
	m.appendHistory(q, job.StateCompleted, cp, now, retention)
	return nil
}

func (m *MemoryBackend) Fail(_ context.Context, rec *job.Record, reason string, retention job.Retention) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queue(rec.Queue)
	if !q.release(rec.ID) {
		return errors.ErrJobNotFound
	}

	now := m.now()
	cp := copyRecord(rec)
	cp.State = job.StateFailed
	cp.FailureReason = reason
	cp.FinishedAt = &now
	m.appendHistory(q, job.StateFailed, cp, now, retention)
	return nil
}

// appendHistory adds a terminal record and trims the history by age and
// count, oldest first. Caller must hold mu.
func (m *MemoryBackend) appendHistory(q *memoryQueue, state job.State, rec *job.Record, now time.Time, retention job.Retention) {
	entries := append(q.history[state], historyEntry{rec: rec, finishedAt: now})

	if retention.MaxAge > 0 {
		cutoff := now.Add(-retention.MaxAge)
		i := 0
		for i < len(entries) && entries[i].finishedAt.Before(cutoff) {
			i++
		}
		entries = entries[i:]
	}
	if retention.MaxCount > 0 && len(entries) > retention.MaxCount {
		entries = entries[len(entries)-retention.MaxCount:]
	}
	q.history[state] = entries
}

func (m *MemoryBackend) Delay(_ context.Context, rec *job.Record, runAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queue(rec.Queue)
	if !q.release(rec.ID) {
		return errors.ErrJobNotFound
	}

	cp := copyRecord(rec)
	cp.State = job.StateDelayed
	cp.ScheduledAt = runAt
	q.delayed = append(q.delayed, cp)
	return nil
}

func (m *MemoryBackend) SetProgress(_ context.Context, rec *job.Record, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[rec.Queue]
	if !ok {
		return errors.ErrJobNotFound
	}
	lock, ok := q.active[rec.ID]
	if !ok {
		return errors.ErrJobNotFound
	}
	lock.rec.Progress = progress
	return nil
}

func (m *MemoryBackend) PromoteDelayed(_ context.Context, queue string, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queue]
	if !ok {
		return 0, nil
	}

	now := m.now()
	moved := 0
	remaining := q.delayed[:0]
	for _, rec := range q.delayed {
		if (limit <= 0 || moved < limit) && !rec.ScheduledAt.After(now) {
			rec.State = job.StateWaiting
			insertWaiting(q, rec)
			moved++
			continue
		}
		remaining = append(remaining, rec)
	}
	q.delayed = remaining
	return moved, nil
}

func (m *MemoryBackend) ExpiredActive(_ context.Context, queue string) ([]*job.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queue]
	if !ok {
		return nil, nil
	}

	now := m.now()
	var expired []*job.Record
	for _, lock := range q.active {
		if lock.expiresAt.Before(now) {
			expired = append(expired, copyRecord(lock.rec))
		}
	}
	return expired, nil
}

func (m *MemoryBackend) RequeueStalled(_ context.Context, rec *job.Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queue(rec.Queue)
	if !q.release(rec.ID) {
		return false, nil
	}

	cp := copyRecord(rec)
	cp.State = job.StateWaiting
	insertWaiting(q, cp)
	return true, nil
}

func (m *MemoryBackend) DrainActive(_ context.Context, queue string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queue]
	if !ok {
		return 0, nil
	}

	moved := 0
	for id, lock := range q.active {
		delete(q.active, id)
		rec := lock.rec
		rec.State = job.StateWaiting
		// The interrupted attempt does not count against the budget.
		if rec.AttemptsMade > 0 {
			rec.AttemptsMade--
		}
		insertWaiting(q, rec)
		moved++
	}
	return moved, nil
}

func (m *MemoryBackend) GetJob(_ context.Context, queue, jobID string) (*job.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queue]
	if !ok {
		return nil, &errors.JobNotFoundError{JobID: jobID}
	}

	if lock, ok := q.active[jobID]; ok {
		return copyRecord(lock.rec), nil
	}
	for _, rec := range q.waiting {
		if rec.ID == jobID {
			return copyRecord(rec), nil
		}
	}
	for _, rec := range q.delayed {
		if rec.ID == jobID {
			return copyRecord(rec), nil
		}
	}
	for _, state := range []job.State{job.StateCompleted, job.StateFailed} {
		for _, entry := range q.history[state] {
			if entry.rec.ID == jobID {
				return copyRecord(entry.rec), nil
			}
		}
	}
	return nil, &errors.JobNotFoundError{JobID: jobID}
}

func (m *MemoryBackend) ListHistory(_ context.Context, queue string, state job.State, offset, limit int) ([]*job.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queue]
	if !ok {
		return nil, nil
	}

	entries := q.history[state]
	// Newest first, matching how operators inspect failures.
	result := make([]*job.Record, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		result = append(result, copyRecord(entries[i].rec))
	}

	if offset > 0 {
		if offset >= len(result) {
			return nil, nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryBackend) EnsureQueue(_ context.Context, queue string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue(queue)
	return nil
}

func (m *MemoryBackend) Queues(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryBackend) Pause(_ context.Context, queue string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue(queue).paused = true
	return nil
}

func (m *MemoryBackend) Resume(_ context.Context, queue string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue(queue).paused = false
	return nil
}

func (m *MemoryBackend) IsPaused(_ context.Context, queue string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queue]
	return ok && q.paused, nil
}

func (m *MemoryBackend) Stats(_ context.Context, queue string) (*QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queue]
	if !ok {
		return &QueueStats{}, nil
	}
	return &QueueStats{
		Waiting:   int64(len(q.waiting)),
		Active:    int64(len(q.active)),
		Delayed:   int64(len(q.delayed)),
		Completed: int64(len(q.history[job.StateCompleted])),
		Failed:    int64(len(q.history[job.StateFailed])),
		Paused:    q.paused,
	}, nil
}

func (m *MemoryBackend) UpsertSchedule(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.schedules[s.ID] = &cp
	return nil
}

func (m *MemoryBackend) ListSchedules(_ context.Context) ([]*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		cp := *s
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return result, nil
}

func (m *MemoryBackend) ClaimSchedule(_ context.Context, sched *Schedule, due, next time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[sched.ID]
	if !ok {
		return false, errors.ErrScheduleNotFound
	}
	if s.NextRunAt.After(due) {
		return false, nil
	}
	s.NextRunAt = next
	fired := due
	s.LastRunAt = &fired
	return true, nil
}

func (m *MemoryBackend) DeleteSchedule(_ context.Context, scheduleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.schedules[scheduleID]; !ok {
		return errors.ErrScheduleNotFound
	}
	delete(m.schedules, scheduleID)
	return nil
}

func (m *MemoryBackend) Ping(_ context.Context) error { return nil }

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
