package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/backend"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/config"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/driver"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/server"
)

func setupServer(t *testing.T) (*jobqueue.Manager, http.Handler) {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{
		Driver:            driver.DriverMemory,
		PollInterval:      10 * time.Millisecond,
		PromoteInterval:   20 * time.Millisecond,
		TickInterval:      20 * time.Millisecond,
		HeartbeatInterval: 50 * time.Millisecond,
		LockTTL:           time.Second,
	}

	mgr, err := jobqueue.NewManager(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Shutdown(shutdownCtx)
	})

	require.NoError(t, mgr.RegisterProcessor(config.QueueConfig{Name: "email"},
		func(ctx context.Context, j *jobqueue.ActiveJob) error { return nil }))
	require.NoError(t, mgr.Initialize(ctx))

	return mgr, server.NewAdminServer(mgr, 0).Handler()
}

func TestAdminServer_Queues(t *testing.T) {
	_, handler := setupServer(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/queues", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var queues []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &queues))
	require.Equal(t, []string{"email"}, queues)
}

func TestAdminServer_QueueStats(t *testing.T) {
	mgr, handler := setupServer(t)
	ctx := context.Background()

	require.NoError(t, mgr.PauseQueue(ctx, "email"))
	_, err := mgr.AddJob(ctx, "email", "welcome", nil, job.Options{})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/queue/stats?queue=email", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var stats backend.QueueStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.Equal(t, int64(1), stats.Waiting)
	require.True(t, stats.Paused)

	// Unknown queue maps to 404.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/queue/stats?queue=nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	// Missing queue param is a bad request.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/queue/stats", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminServer_BatchStats(t *testing.T) {
	_, handler := setupServer(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/queue/stats/batch", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var stats map[string]*backend.QueueStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.Contains(t, stats, "email")
}

func TestAdminServer_PauseResume(t *testing.T) {
	mgr, handler := setupServer(t)
	ctx := context.Background()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/queue/pause?queue=email", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	stats, err := mgr.QueueStats(ctx, "email")
	require.NoError(t, err)
	require.True(t, stats.Paused)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/queue/resume?queue=email", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	stats, err = mgr.QueueStats(ctx, "email")
	require.NoError(t, err)
	require.False(t, stats.Paused)

	// GET is rejected.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/queue/pause?queue=email", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestAdminServer_History(t *testing.T) {
	mgr, handler := setupServer(t)
	ctx := context.Background()

	_, err := mgr.AddJob(ctx, "email", "welcome", map[string]string{"to": "a@b.c"}, job.Options{})
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := mgr.QueueStats(ctx, "email")
		require.NoError(t, err)
		if stats.Completed == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet,
		"/api/queue/history?queue=email&state=completed", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var records []*job.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 1)
	require.Equal(t, "welcome", records[0].Name)

	// Only terminal states are inspectable.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet,
		"/api/queue/history?queue=email&state=active", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminServer_Schedules(t *testing.T) {
	mgr, handler := setupServer(t)
	ctx := context.Background()

	id, err := mgr.AddRecurring(ctx, "email", "digest", "@daily", nil, job.Options{})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/schedules", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var schedules []*backend.Schedule
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &schedules))
	require.Len(t, schedules, 1)
	require.Equal(t, id, schedules[0].ID)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/schedules?id="+id, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/schedules?id="+id, nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminServer_Health(t *testing.T) {
	_, handler := setupServer(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var status jobqueue.HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.True(t, status.Healthy)
}
