// Package server exposes the engine's admin surface over HTTP: queue
// stats, history inspection, pause/resume, recurring schedules and a
// health endpoint, all JSON plus an SSE stats stream.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/backend"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/errors"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
)

// Engine is the slice of the manager the admin API needs.
type Engine interface {
	Queues() []string
	QueueStats(ctx context.Context, queue string) (*backend.QueueStats, error)
	AllStats(ctx context.Context) (map[string]*backend.QueueStats, error)
	ListHistory(ctx context.Context, queue string, state job.State, offset, limit int) ([]*job.Record, error)
	PauseQueue(ctx context.Context, queue string) error
	ResumeQueue(ctx context.Context, queue string) error
	ListRecurring(ctx context.Context) ([]*backend.Schedule, error)
	RemoveRecurring(ctx context.Context, scheduleID string) error
	HealthCheck(ctx context.Context) jobqueue.HealthStatus
}

type AdminServer struct {
	Engine   Engine
	Port     int
	RootPath string

	// StreamInterval paces the SSE stats stream. Defaults to 2s.
	StreamInterval time.Duration
}

func NewAdminServer(engine Engine, port int) *AdminServer {
	return &AdminServer{
		Engine:   engine,
		Port:     port,
		RootPath: "/",
	}
}

// SetRootPath sets the mount point, matching where the handler is mounted.
// Example: admin.SetRootPath("/jobs/admin")
func (s *AdminServer) SetRootPath(path string) {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	s.RootPath = path
}

// Handler returns an http.Handler that can be mounted on any HTTP server.
func (s *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()
	rootPath := s.RootPath

	mux.HandleFunc(rootPath+"api/queues", jsonResponse(s.handleGetQueues))
	mux.HandleFunc(rootPath+"api/queue/stats", jsonResponse(s.handleGetQueueStats))
	mux.HandleFunc(rootPath+"api/queue/stats/batch", jsonResponse(s.handleGetBatchStats))
	mux.HandleFunc(rootPath+"api/queue/stats/stream", s.handleStatsStream)
	mux.HandleFunc(rootPath+"api/queue/history", jsonResponse(s.handleGetHistory))
	mux.HandleFunc(rootPath+"api/queue/pause", jsonResponse(s.handlePauseQueue))
	mux.HandleFunc(rootPath+"api/queue/resume", jsonResponse(s.handleResumeQueue))
	mux.HandleFunc(rootPath+"api/schedules", jsonResponse(s.handleSchedules))
	mux.HandleFunc(rootPath+"api/health", jsonResponse(s.handleHealth))

	return mux
}

func jsonResponse(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next(w, r)
	}
}

func (s *AdminServer) Start() error {
	addr := fmt.Sprintf(":%d", s.Port)
	return http.ListenAndServe(addr, s.Handler())
}

func httpStatus(err error) int {
	if errors.IsQueueNotFound(err) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *AdminServer) handleGetQueues(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(s.Engine.Queues())
}

func (s *AdminServer) handleGetQueueStats(w http.ResponseWriter, r *http.Request) {
	queue := r.URL.Query().Get("queue")
	if queue == "" {
		http.Error(w, "queue is required", http.StatusBadRequest)
		return
	}

	stats, err := s.Engine.QueueStats(r.Context(), queue)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	json.NewEncoder(w).Encode(stats)
}

func (s *AdminServer) handleGetBatchStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Engine.AllStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(stats)
}

func (s *AdminServer) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	interval := s.StreamInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.Engine.AllStats(ctx)
			if err != nil {
				continue
			}

			data, err := json.Marshal(stats)
			if err != nil {
				continue
			}

			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *AdminServer) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	queue := r.URL.Query().Get("queue")
	if queue == "" {
		http.Error(w, "queue is required", http.StatusBadRequest)
		return
	}

	state := job.State(r.URL.Query().Get("state"))
	if state == "" {
		state = job.StateFailed
	}
	if state != job.StateCompleted && state != job.StateFailed {
		http.Error(w, "state must be 'completed' or 'failed'", http.StatusBadRequest)
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = 10
	}

	records, err := s.Engine.ListHistory(r.Context(), queue, state, offset, limit)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	json.NewEncoder(w).Encode(records)
}

func (s *AdminServer) handlePauseQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	queue := r.URL.Query().Get("queue")
	if queue == "" {
		http.Error(w, "queue is required", http.StatusBadRequest)
		return
	}

	if err := s.Engine.PauseQueue(r.Context(), queue); err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "paused", "queue": queue})
}

func (s *AdminServer) handleResumeQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	queue := r.URL.Query().Get("queue")
	if queue == "" {
		http.Error(w, "queue is required", http.StatusBadRequest)
		return
	}

	if err := s.Engine.ResumeQueue(r.Context(), queue); err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "resumed", "queue": queue})
}

func (s *AdminServer) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		schedules, err := s.Engine.ListRecurring(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(schedules)

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "id is required", http.StatusBadRequest)
			return
		}
		if err := s.Engine.RemoveRecurring(r.Context(), id); err != nil {
			if err == errors.ErrScheduleNotFound {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "id": id})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.Engine.HealthCheck(r.Context())
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
