package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/batchpix/batchpix/internal/job"
	"github.com/batchpix/batchpix/internal/model"
	"github.com/batchpix/batchpix/internal/worker"
)

// runStore persists finished job runs.
type runStore interface {
	SaveRun(ctx context.Context, run model.JobRun) error
}

// HistoryRecorder appends an audit record when a task reaches a terminal
// state. Non-terminal transitions are ignored.
type HistoryRecorder struct {
	store  runStore
	lookup func(id uuid.UUID) (*job.Job, error)
}

// NewHistoryRecorder creates a recorder. lookup resolves a task handle to
// its job for the display name; it is typically the coordinator's Lookup.
func NewHistoryRecorder(store runStore, lookup func(id uuid.UUID) (*job.Job, error)) *HistoryRecorder {
	return &HistoryRecorder{store: store, lookup: lookup}
}

func (r *HistoryRecorder) record(id uuid.UUID, status job.Status, completed, failed int) {
	name := ""
	if j, err := r.lookup(id); err == nil {
		name = j.Name()
	}

	run := model.JobRun{
		TaskID:         id,
		Name:           name,
		Status:         string(status),
		CompletedCount: completed,
		FailedCount:    failed,
		FinishedAt:     time.Now(),
	}

	if err := r.store.SaveRun(context.Background(), run); err != nil {
		zlog.Logger.Err(err).Str("task", id.String()).Msg("failed to record job run")
	}
}

func (r *HistoryRecorder) OnTaskStarted(uuid.UUID) {}

func (r *HistoryRecorder) OnTaskProgress(uuid.UUID, float64) {}

func (r *HistoryRecorder) OnTaskCompleted(id uuid.UUID, result worker.Result) {
	r.record(id, job.StatusCompleted, result.CompletedCount, len(result.Errors))
}

func (r *HistoryRecorder) OnTaskFailed(id uuid.UUID, err error) {
	r.record(id, job.StatusFailed, 0, 0)
}

func (r *HistoryRecorder) OnTaskCancelled(id uuid.UUID) {
	r.record(id, job.StatusCancelled, 0, 0)
}
