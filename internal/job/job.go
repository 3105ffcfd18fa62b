package job

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/batchpix/batchpix/internal/model"
	"github.com/batchpix/batchpix/internal/pipeline"
)

var (
	// ErrJobBusy is returned when a caller tries to mutate the pipeline of
	// a running job. The pipeline is read-only for everyone but the worker
	// until the job reaches a terminal state.
	ErrJobBusy = errors.New("job is running, pipeline is read-only")

	// ErrInvalidTransition is returned for status transitions the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final. Terminal states are only
// left through an explicit Reset.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job groups a set of source images with one owned pipeline and a status.
// Status transitions follow pending -> running -> {completed|failed|cancelled};
// a pending job may also be cancelled directly while still queued.
type Job struct {
	id      uuid.UUID
	name    string
	sources []string

	mu       sync.RWMutex
	pipeline *pipeline.Pipeline
	status   Status
	progress float64
}

// New creates a pending job from its configuration. Initial operations go
// through the command mechanism, so they are undoable like any other edit.
func New(cfg model.JobConfig) *Job {
	j := &Job{
		id:       uuid.New(),
		name:     cfg.Name,
		sources:  append([]string(nil), cfg.Sources...),
		pipeline: pipeline.New(),
		status:   StatusPending,
	}

	for _, op := range cfg.Operations {
		j.pipeline.AddOperation(op.Clone())
	}

	return j
}

// ID returns the job's unique identifier, used as its task handle.
func (j *Job) ID() uuid.UUID { return j.id }

// Name returns the job's display name.
func (j *Job) Name() string { return j.name }

// Sources returns a copy of the source image references in their stable
// processing order.
func (j *Job) Sources() []string {
	return append([]string(nil), j.sources...)
}

// Status returns the current lifecycle state.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.status
}

// Progress returns the last reported progress fraction in [0,1].
func (j *Job) Progress() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.progress
}

// SetProgress records the progress fraction reported by the worker.
func (j *Job) SetProgress(fraction float64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.progress = fraction
}

// OnPipelineChange registers the pipeline's change notification callback.
func (j *Job) OnPipelineChange(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.pipeline.OnChange(fn)
}

// Operations returns a copy of the pipeline's current operation list.
func (j *Job) Operations() []model.Operation {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.pipeline.Operations()
}

// AddOperation appends an operation to the pipeline. Fails with ErrJobBusy
// while the job is running.
func (j *Job) AddOperation(op model.Operation) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == StatusRunning {
		return ErrJobBusy
	}

	j.pipeline.AddOperation(op)

	return nil
}

// ApplyCurrentEffects copies an externally-owned effect set into this
// job's pipeline, one add command per operation.
func (j *Job) ApplyCurrentEffects(ops []model.Operation) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == StatusRunning {
		return ErrJobBusy
	}

	for _, op := range ops {
		j.pipeline.AddOperation(op.Clone())
	}

	return nil
}

// ClearEffects clears the pipeline. An already-empty pipeline is a
// reported no-op (false), not an error.
func (j *Job) ClearEffects() (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == StatusRunning {
		return false, ErrJobBusy
	}

	return j.pipeline.Clear(), nil
}

// Undo reverts the most recent pipeline command.
func (j *Job) Undo() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == StatusRunning {
		return ErrJobBusy
	}

	return j.pipeline.Undo()
}

// Redo re-applies the most recently undone pipeline command.
func (j *Job) Redo() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == StatusRunning {
		return ErrJobBusy
	}

	return j.pipeline.Redo()
}

// CanUndo reports whether the pipeline has commands to undo.
func (j *Job) CanUndo() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.pipeline.CanUndo()
}

// CanRedo reports whether the pipeline has commands to redo.
func (j *Job) CanRedo() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.pipeline.CanRedo()
}

// ResetPipeline drops the operation list and both command stacks without
// going through the command mechanism.
func (j *Job) ResetPipeline() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == StatusRunning {
		return ErrJobBusy
	}

	j.pipeline.Reset()

	return nil
}

// MarkRunning moves a pending job to running.
func (j *Job) MarkRunning() error {
	return j.transition(StatusRunning)
}

// MarkCompleted moves a running job to completed.
func (j *Job) MarkCompleted() error {
	return j.transition(StatusCompleted)
}

// MarkFailed moves a running job to failed.
func (j *Job) MarkFailed() error {
	return j.transition(StatusFailed)
}

// MarkCancelled moves a pending or running job to cancelled. Cancelling is
// idempotent: cancelling an already-cancelled job is a no-op.
func (j *Job) MarkCancelled() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == StatusCancelled {
		return nil
	}
	if j.status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, StatusCancelled)
	}

	j.status = StatusCancelled

	return nil
}

// Reset returns a terminal job to pending for a fresh execution cycle.
// The pipeline's operation list is preserved; callers that want a clean
// pipeline call ResetPipeline separately.
func (j *Job) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, StatusPending)
	}

	j.status = StatusPending
	j.progress = 0

	return nil
}

func (j *Job) transition(to Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	valid := false
	switch to {
	case StatusRunning:
		valid = j.status == StatusPending
	case StatusCompleted, StatusFailed, StatusCancelled:
		valid = j.status == StatusRunning
	}

	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, to)
	}

	j.status = to

	return nil
}
