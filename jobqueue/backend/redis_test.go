package backend_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/backend"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/errors"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
)

func setupRedisBackend(t *testing.T) *backend.RedisBackend {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start redis container")

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	port, err := strconv.Atoi(mappedPort.Port())
	require.NoError(t, err)

	be, err := backend.NewRedisBackend(ctx, backend.RedisConfig{
		Host:        host,
		Port:        port,
		PingTimeout: time.Second,
		Prefix:      "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = be.Close() })

	return be
}

func testRecord(queue, id string, priority int) *job.Record {
	now := time.Now()
	return &job.Record{
		ID:            id,
		Queue:         queue,
		Name:          "test_job",
		Payload:       []byte(`{"n":1}`),
		Priority:      priority,
		AttemptsLimit: 3,
		State:         job.StateWaiting,
		ScheduledAt:   now,
		CreatedAt:     now,
	}
}

func TestRedisBackend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	be := setupRedisBackend(t)
	ctx := context.Background()

	t.Run("EnqueueDequeueComplete", func(t *testing.T) {
		rec := testRecord("lifecycle", "a", 0)
		require.NoError(t, be.Enqueue(ctx, rec))
		require.NotZero(t, rec.Seq)

		got, err := be.Dequeue(ctx, "lifecycle", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, "a", got.ID)
		require.Equal(t, job.StateActive, got.State)
		require.Equal(t, 1, got.AttemptsMade)

		require.NoError(t, be.Complete(ctx, got, []byte(`"done"`), job.Retention{MaxCount: 10}))

		records, err := be.ListHistory(ctx, "lifecycle", job.StateCompleted, 0, 10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, "a", records[0].ID)
		require.NotNil(t, records[0].FinishedAt)

		// The claim is consumed: settling again fails.
		err = be.Complete(ctx, got, nil, job.Retention{})
		require.ErrorIs(t, err, errors.ErrJobNotFound)
	})

	t.Run("PriorityOrdering", func(t *testing.T) {
		require.NoError(t, be.Enqueue(ctx, testRecord("prio", "low", 10)))
		require.NoError(t, be.Enqueue(ctx, testRecord("prio", "high", 1)))
		require.NoError(t, be.Enqueue(ctx, testRecord("prio", "mid1", 5)))
		require.NoError(t, be.Enqueue(ctx, testRecord("prio", "mid2", 5)))

		var order []string
		for {
			rec, err := be.Dequeue(ctx, "prio", time.Minute)
			require.NoError(t, err)
			if rec == nil {
				break
			}
			order = append(order, rec.ID)
			require.NoError(t, be.Complete(ctx, rec, nil, job.Retention{}))
		}
		require.Equal(t, []string{"high", "mid1", "mid2", "low"}, order)
	})

	t.Run("DequeueMutualExclusion", func(t *testing.T) {
		const jobs = 30
		for i := 0; i < jobs; i++ {
			require.NoError(t, be.Enqueue(ctx, testRecord("mutex", fmt.Sprintf("job-%d", i), 0)))
		}

		var mu sync.Mutex
		seen := make(map[string]int)
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					rec, err := be.Dequeue(ctx, "mutex", time.Minute)
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
	})

	t.Run("DelayAndPromote", func(t *testing.T) {
		rec := testRecord("delayed", "d1", 0)
		rec.State = job.StateDelayed
		rec.ScheduledAt = time.Now().Add(500 * time.Millisecond)
		require.NoError(t, be.Enqueue(ctx, rec))

		got, err := be.Dequeue(ctx, "delayed", time.Minute)
		require.NoError(t, err)
		require.Nil(t, got, "delayed record must not be claimable before due")

		moved, err := be.PromoteDelayed(ctx, "delayed", 100)
		require.NoError(t, err)
		require.Zero(t, moved)

		time.Sleep(600 * time.Millisecond)
		moved, err = be.PromoteDelayed(ctx, "delayed", 100)
		require.NoError(t, err)
		require.Equal(t, 1, moved)

		got, err = be.Dequeue(ctx, "delayed", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, "d1", got.ID)
	})

	t.Run("PauseBlocksDequeue", func(t *testing.T) {
		require.NoError(t, be.Enqueue(ctx, testRecord("paused", "p1", 0)))
		require.NoError(t, be.Pause(ctx, "paused"))

		got, err := be.Dequeue(ctx, "paused", time.Minute)
		require.NoError(t, err)
		require.Nil(t, got)

		paused, err := be.IsPaused(ctx, "paused")
		require.NoError(t, err)
		require.True(t, paused)

		require.NoError(t, be.Resume(ctx, "paused"))
		got, err = be.Dequeue(ctx, "paused", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, got)
	})

	t.Run("StallRecovery", func(t *testing.T) {
		require.NoError(t, be.Enqueue(ctx, testRecord("stall", "s1", 0)))

		claimed, err := be.Dequeue(ctx, "stall", 200*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, claimed)

		time.Sleep(300 * time.Millisecond)

		expired, err := be.ExpiredActive(ctx, "stall")
		require.NoError(t, err)
		require.Len(t, expired, 1)

		requeued, err := be.RequeueStalled(ctx, expired[0])
		require.NoError(t, err)
		require.True(t, requeued)

		got, err := be.Dequeue(ctx, "stall", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, "s1", got.ID)
	})

	t.Run("HeartbeatExtendsLock", func(t *testing.T) {
		require.NoError(t, be.Enqueue(ctx, testRecord("hb", "h1", 0)))

		_, err := be.Dequeue(ctx, "hb", 300*time.Millisecond)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			time.Sleep(200 * time.Millisecond)
			require.NoError(t, be.Heartbeat(ctx, "hb", "h1", 300*time.Millisecond))
		}

		expired, err := be.ExpiredActive(ctx, "hb")
		require.NoError(t, err)
		require.Empty(t, expired)
	})

	t.Run("DrainActive", func(t *testing.T) {
		require.NoError(t, be.Enqueue(ctx, testRecord("drain", "d1", 0)))
		claimed, err := be.Dequeue(ctx, "drain", time.Minute)
		require.NoError(t, err)
		require.Equal(t, 1, claimed.AttemptsMade)

		moved, err := be.DrainActive(ctx, "drain")
		require.NoError(t, err)
		require.Equal(t, 1, moved)

		got, err := be.Dequeue(ctx, "drain", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, 1, got.AttemptsMade, "interrupted attempt must not be charged")
	})

	t.Run("SetProgress", func(t *testing.T) {
		require.NoError(t, be.Enqueue(ctx, testRecord("progress", "pr1", 0)))
		claimed, err := be.Dequeue(ctx, "progress", time.Minute)
		require.NoError(t, err)

		require.NoError(t, be.SetProgress(ctx, claimed, 55))
		got, err := be.GetJob(ctx, "progress", "pr1")
		require.NoError(t, err)
		require.Equal(t, 55, got.Progress)
	})

	t.Run("RecordFidelityThroughDelayAndDrain", func(t *testing.T) {
		// Raw payloads and long durations must survive every storage-side
		// move byte for byte: an empty JSON array and a multi-day timeout
		// are the classic casualties of re-encoding.
		rec := testRecord("fidelity", "f1", 0)
		rec.Payload = []byte(`[]`)
		rec.Timeout = 40 * time.Hour
		rec.Backoff = job.BackoffPolicy{Type: job.BackoffFixed, Delay: 30 * time.Hour}
		rec.State = job.StateDelayed
		rec.ScheduledAt = time.Now().Add(-time.Second)
		require.NoError(t, be.Enqueue(ctx, rec))

		moved, err := be.PromoteDelayed(ctx, "fidelity", 100)
		require.NoError(t, err)
		require.Equal(t, 1, moved)

		claimed, err := be.Dequeue(ctx, "fidelity", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		require.Equal(t, `[]`, string(claimed.Payload))
		require.Equal(t, 40*time.Hour, claimed.Timeout)
		require.Equal(t, 30*time.Hour, claimed.Backoff.Delay)

		moved, err = be.DrainActive(ctx, "fidelity")
		require.NoError(t, err)
		require.Equal(t, 1, moved)

		claimed, err = be.Dequeue(ctx, "fidelity", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		require.Equal(t, `[]`, string(claimed.Payload))
		require.Equal(t, 40*time.Hour, claimed.Timeout)
	})

	t.Run("ScheduleClaim", func(t *testing.T) {
		base := time.Now()
		s := &backend.Schedule{
			ID:         "sched-1",
			Queue:      "cron",
			JobName:    "tick",
			Expression: "* * * * *",
			NextRunAt:  base,
			CreatedAt:  base,
		}
		require.NoError(t, be.UpsertSchedule(ctx, s))

		next := base.Add(time.Minute)
		claimed, err := be.ClaimSchedule(ctx, s, base, next)
		require.NoError(t, err)
		require.True(t, claimed)

		claimed, err = be.ClaimSchedule(ctx, s, base, next)
		require.NoError(t, err)
		require.False(t, claimed, "a fired tick must not be claimable twice")

		schedules, err := be.ListSchedules(ctx)
		require.NoError(t, err)
		require.Len(t, schedules, 1)
		require.True(t, schedules[0].NextRunAt.After(base))
		require.NotNil(t, schedules[0].LastRunAt)

		require.NoError(t, be.DeleteSchedule(ctx, "sched-1"))
		require.ErrorIs(t, be.DeleteSchedule(ctx, "sched-1"), errors.ErrScheduleNotFound)
	})

	t.Run("Stats", func(t *testing.T) {
		require.NoError(t, be.Enqueue(ctx, testRecord("stats", "w1", 0)))
		require.NoError(t, be.Enqueue(ctx, testRecord("stats", "w2", 0)))

		stats, err := be.Stats(ctx, "stats")
		require.NoError(t, err)
		require.Equal(t, int64(2), stats.Waiting)
		require.Equal(t, int64(0), stats.Active)
	})
}
