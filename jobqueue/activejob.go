package jobqueue

import (
	"context"
	"encoding/json"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
)

// ActiveJob is the processor's view of the record it is executing. The
// embedded Record is the worker's claimed copy; mutations through the
// helpers are persisted and emitted to observers.
type ActiveJob struct {
	*job.Record

	manager *Manager
}

// UpdateProgress persists handler-reported progress (0-100) and notifies
// progress observers.
func (a *ActiveJob) UpdateProgress(ctx context.Context, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	if err := a.manager.backend.SetProgress(ctx, a.Record, progress); err != nil {
		return err
	}
	a.Progress = progress
	a.manager.observers.jobProgress(ctx, a.Record, progress)
	return nil
}

// SetResult attaches a JSON-serializable result that is stored with the
// completed record.
func (a *ActiveJob) SetResult(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	a.Result = data
	return nil
}
