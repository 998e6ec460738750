package jobqueue

import (
	"context"
	"time"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/backend"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/config"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
)

// runPromoter moves due delayed jobs back to waiting on every tick, in
// batches until a queue has no more due records.
func (m *Manager) runPromoter(ctx context.Context) {
	ticker := time.NewTicker(m.config.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range m.Queues() {
				for {
					moved, err := m.backend.PromoteDelayed(ctx, name, m.config.PromoteBatch)
					if err != nil {
						if ctx.Err() == nil {
							m.logger.Error("delayed promotion failed", "queue", name, "error", err)
						}
						break
					}
					if moved < m.config.PromoteBatch {
						break
					}
				}
			}
		}
	}
}

// runScheduleLoop fires due recurring schedules. Each firing is an atomic
// claim on the schedule's NextRunAt, so with several engine processes on the
// same store exactly one enqueues per trigger. A schedule that was due
// several times while no engine ran fires once and advances to the next
// future tick.
func (m *Manager) runScheduleLoop(ctx context.Context) {
	ticker := time.NewTicker(m.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.fireDueSchedules(ctx)
		}
	}
}

func (m *Manager) fireDueSchedules(ctx context.Context) {
	schedules, err := m.backend.ListSchedules(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("schedule listing failed", "error", err)
		}
		return
	}

	now := time.Now()
	for _, s := range schedules {
		if s.NextRunAt.After(now) {
			continue
		}

		expr, err := m.cronParser.Parse(s.Expression)
		if err != nil {
			m.logger.Error("invalid schedule expression",
				"schedule_id", s.ID,
				"expression", s.Expression,
				"error", err)
			continue
		}

		// Next is computed from now, not from the missed tick, so a backlog
		// of missed triggers never floods the queue.
		next := expr.Next(now)
		claimed, err := m.backend.ClaimSchedule(ctx, s, now, next)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Error("schedule claim failed", "schedule_id", s.ID, "error", err)
			}
			continue
		}
		if !claimed {
			continue
		}

		m.enqueueScheduled(ctx, s)
	}
}

func (m *Manager) enqueueScheduled(ctx context.Context, s *backend.Schedule) {
	defaults := m.queueDefaults(s.Queue)
	rec, err := m.buildRecord(s.Queue, s.JobName, nil, defaults, s.Options)
	if err != nil {
		m.logger.Error("scheduled job build failed", "schedule_id", s.ID, "error", err)
		return
	}
	rec.Payload = s.Payload

	if err := m.backend.Enqueue(ctx, rec); err != nil {
		m.logger.Error("scheduled enqueue failed",
			"schedule_id", s.ID,
			"queue", s.Queue,
			"error", err)
		return
	}

	if rec.State == job.StateWaiting {
		m.observers.jobWaiting(ctx, rec)
	}
	m.logger.Debug("recurring job enqueued",
		"schedule_id", s.ID,
		"queue", s.Queue,
		"job_id", rec.ID,
		"name", s.JobName)
}

// queueDefaults resolves job defaults for a queue, falling back to the
// engine-wide defaults when the queue is not registered in this process.
func (m *Manager) queueDefaults(queue string) job.Defaults {
	if rt := m.runtime(queue); rt != nil {
		return rt.defaults
	}
	return m.config.JobDefaults(config.QueueConfig{Name: queue})
}
