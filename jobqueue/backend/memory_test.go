package backend

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/errors"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
)

func newRecord(queue, id string, priority int) *job.Record {
	now := time.Now()
	return &job.Record{
		ID:            id,
		Queue:         queue,
		Name:          "test_job",
		Priority:      priority,
		AttemptsLimit: 3,
		State:         job.StateWaiting,
		ScheduledAt:   now,
		CreatedAt:     now,
	}
}

func TestMemoryBackend_EnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	rec := newRecord("q", "a", 0)
	require.NoError(t, m.Enqueue(ctx, rec))
	require.NotZero(t, rec.Seq)

	got, err := m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "a", got.ID)
	require.Equal(t, job.StateActive, got.State)
	require.Equal(t, 1, got.AttemptsMade)
	require.NotNil(t, got.ProcessedAt)

	// Queue is now empty.
	got, err = m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemoryBackend_PriorityOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	require.NoError(t, m.Enqueue(ctx, newRecord("q", "low", 10)))
	require.NoError(t, m.Enqueue(ctx, newRecord("q", "high", -5)))
	require.NoError(t, m.Enqueue(ctx, newRecord("q", "mid1", 0)))
	require.NoError(t, m.Enqueue(ctx, newRecord("q", "mid2", 0)))

	var order []string
	for {
		rec, err := m.Dequeue(ctx, "q", time.Minute)
		require.NoError(t, err)
		if rec == nil {
			break
		}
		order = append(order, rec.ID)
	}

	// Lower priority value first; FIFO within equal priorities.
	require.Equal(t, []string{"high", "mid1", "mid2", "low"}, order)
}

func TestMemoryBackend_DequeueMutualExclusion(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	const jobs = 50
	for i := 0; i < jobs; i++ {
		require.NoError(t, m.Enqueue(ctx, newRecord("q", fmt.Sprintf("job-%d", i), 0)))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				rec, err := m.Dequeue(ctx, "q", time.Minute)
				require.NoError(t, err)
				if rec == nil {
					return
				}
				mu.Lock()
				seen[rec.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, jobs)
	for id, n := range seen {
		require.Equal(t, 1, n, "job %s claimed %d times", id, n)
	}
}

func TestMemoryBackend_DequeuePaused(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	require.NoError(t, m.Enqueue(ctx, newRecord("q", "a", 0)))
	require.NoError(t, m.Pause(ctx, "q"))

	rec, err := m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.Nil(t, rec)

	// Enqueueing on a paused queue is still accepted.
	require.NoError(t, m.Enqueue(ctx, newRecord("q", "b", 0)))

	require.NoError(t, m.Resume(ctx, "q"))
	rec, err = m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestMemoryBackend_CompleteIsCAS(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	require.NoError(t, m.Enqueue(ctx, newRecord("q", "a", 0)))
	rec, err := m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)

	require.NoError(t, m.Complete(ctx, rec, nil, job.Retention{}))

	// Second settlement of the same claim loses.
	err = m.Complete(ctx, rec, nil, job.Retention{})
	require.ErrorIs(t, err, errors.ErrJobNotFound)
	err = m.Fail(ctx, rec, "late", job.Retention{})
	require.ErrorIs(t, err, errors.ErrJobNotFound)

	got, err := m.GetJob(ctx, "q", "a")
	require.NoError(t, err)
	require.Equal(t, job.StateCompleted, got.State)
	require.NotNil(t, got.FinishedAt)
}

func TestMemoryBackend_HistoryRetention(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	retention := job.Retention{MaxCount: 3}
	for i := 0; i < 5; i++ {
		rec := newRecord("q", fmt.Sprintf("job-%d", i), 0)
		require.NoError(t, m.Enqueue(ctx, rec))
		claimed, err := m.Dequeue(ctx, "q", time.Minute)
		require.NoError(t, err)
		require.NoError(t, m.Complete(ctx, claimed, nil, retention))
	}

	records, err := m.ListHistory(ctx, "q", job.StateCompleted, 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Newest first.
	require.Equal(t, "job-4", records[0].ID)
	require.Equal(t, "job-2", records[2].ID)
}

func TestMemoryBackend_HistoryAgeRetention(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	retention := job.Retention{MaxAge: time.Minute}

	rec := newRecord("q", "old", 0)
	require.NoError(t, m.Enqueue(ctx, rec))
	claimed, _ := m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, m.Complete(ctx, claimed, nil, retention))

	now = now.Add(2 * time.Minute)

	rec = newRecord("q", "new", 0)
	require.NoError(t, m.Enqueue(ctx, rec))
	claimed, _ = m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, m.Complete(ctx, claimed, nil, retention))

	records, err := m.ListHistory(ctx, "q", job.StateCompleted, 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "new", records[0].ID)
}

func TestMemoryBackend_DelayAndPromote(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	rec := newRecord("q", "a", 0)
	require.NoError(t, m.Enqueue(ctx, rec))
	claimed, err := m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)

	require.NoError(t, m.Delay(ctx, claimed, now.Add(30*time.Second)))

	// Not due yet.
	moved, err := m.PromoteDelayed(ctx, "q", 100)
	require.NoError(t, err)
	require.Zero(t, moved)

	now = now.Add(31 * time.Second)
	moved, err = m.PromoteDelayed(ctx, "q", 100)
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	got, err := m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 2, got.AttemptsMade)
}

func TestMemoryBackend_ExpiredActiveAndRequeue(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Enqueue(ctx, newRecord("q", "a", 0)))
	claimed, err := m.Dequeue(ctx, "q", 10*time.Second)
	require.NoError(t, err)

	expired, err := m.ExpiredActive(ctx, "q")
	require.NoError(t, err)
	require.Empty(t, expired)

	// Heartbeat extends the lock.
	require.NoError(t, m.Heartbeat(ctx, "q", "a", 10*time.Second))
	now = now.Add(5 * time.Second)
	expired, err = m.ExpiredActive(ctx, "q")
	require.NoError(t, err)
	require.Empty(t, expired)

	now = now.Add(6 * time.Second)
	expired, err = m.ExpiredActive(ctx, "q")
	require.NoError(t, err)
	require.Len(t, expired, 1)

	requeued, err := m.RequeueStalled(ctx, expired[0])
	require.NoError(t, err)
	require.True(t, requeued)

	// A second recovery attempt for the same claim loses.
	requeued, err = m.RequeueStalled(ctx, claimed)
	require.NoError(t, err)
	require.False(t, requeued)

	got, err := m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMemoryBackend_DrainActiveRefundsAttempt(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	require.NoError(t, m.Enqueue(ctx, newRecord("q", "a", 0)))
	claimed, err := m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, claimed.AttemptsMade)

	moved, err := m.DrainActive(ctx, "q")
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	// The interrupted attempt is not charged.
	got, err := m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, got.AttemptsMade)
}

func TestMemoryBackend_SetProgress(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	require.NoError(t, m.Enqueue(ctx, newRecord("q", "a", 0)))
	claimed, err := m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)

	require.NoError(t, m.SetProgress(ctx, claimed, 40))
	got, err := m.GetJob(ctx, "q", "a")
	require.NoError(t, err)
	require.Equal(t, 40, got.Progress)

	err = m.SetProgress(ctx, newRecord("q", "missing", 0), 10)
	require.ErrorIs(t, err, errors.ErrJobNotFound)
}

func TestMemoryBackend_Stats(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	require.NoError(t, m.Enqueue(ctx, newRecord("q", "w1", 0)))
	require.NoError(t, m.Enqueue(ctx, newRecord("q", "w2", 0)))

	delayed := newRecord("q", "d1", 0)
	delayed.State = job.StateDelayed
	delayed.ScheduledAt = time.Now().Add(time.Hour)
	require.NoError(t, m.Enqueue(ctx, delayed))

	claimed, err := m.Dequeue(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NoError(t, m.Complete(ctx, claimed, nil, job.Retention{}))

	stats, err := m.Stats(ctx, "q")
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Waiting)
	require.Equal(t, int64(0), stats.Active)
	require.Equal(t, int64(1), stats.Delayed)
	require.Equal(t, int64(1), stats.Completed)
	require.Equal(t, int64(0), stats.Failed)
	require.False(t, stats.Paused)
}

func TestMemoryBackend_ScheduleClaim(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	base := time.Unix(1000, 0)
	s := &Schedule{
		ID:         "sched-1",
		Queue:      "q",
		JobName:    "tick",
		Expression: "* * * * *",
		NextRunAt:  base,
		CreatedAt:  base,
	}
	require.NoError(t, m.UpsertSchedule(ctx, s))

	next := base.Add(time.Minute)

	// Not due before NextRunAt.
	claimed, err := m.ClaimSchedule(ctx, s, base.Add(-time.Second), next)
	require.NoError(t, err)
	require.False(t, claimed)

	claimed, err = m.ClaimSchedule(ctx, s, base, next)
	require.NoError(t, err)
	require.True(t, claimed)

	// Same due tick cannot be claimed twice.
	claimed, err = m.ClaimSchedule(ctx, s, base, next)
	require.NoError(t, err)
	require.False(t, claimed)

	schedules, err := m.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	require.Equal(t, next, schedules[0].NextRunAt)
	require.NotNil(t, schedules[0].LastRunAt)

	_, err = m.ClaimSchedule(ctx, &Schedule{ID: "missing"}, base, next)
	require.ErrorIs(t, err, errors.ErrScheduleNotFound)
}

func TestMemoryBackend_DeleteSchedule(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	require.NoError(t, m.UpsertSchedule(ctx, &Schedule{ID: "s1", Queue: "q"}))
	require.NoError(t, m.DeleteSchedule(ctx, "s1"))
	require.ErrorIs(t, m.DeleteSchedule(ctx, "s1"), errors.ErrScheduleNotFound)
}
