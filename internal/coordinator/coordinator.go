// Package coordinator schedules jobs onto workers with bounded
// concurrency, tracks their status, and fans lifecycle events out to
// registered listeners.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/semaphore"

	"github.com/batchpix/batchpix/internal/event"
	"github.com/batchpix/batchpix/internal/job"
	"github.com/batchpix/batchpix/internal/worker"
)

var (
	// ErrDuplicateSubmission is returned when a job id is already tracked
	// and not yet terminal.
	ErrDuplicateSubmission = errors.New("job already submitted")

	// ErrUnknownTask is returned for handles the coordinator does not track.
	ErrUnknownTask = errors.New("unknown task handle")

	// ErrAlreadyTerminal is reported when cancelling a completed or failed
	// task; the cancel is a no-op.
	ErrAlreadyTerminal = errors.New("task already terminal")
)

const defaultMaxWorkers = 4

// Runner executes one job and reports its progress; *worker.Worker is the
// production implementation.
type Runner interface {
	Run(ctx context.Context, j *job.Job, onProgress func(fraction float64)) (worker.Result, error)
}

// Config holds coordinator tuning knobs.
type Config struct {
	MaxWorkers int64 // concurrent execution slots; defaults to 4
}

type task struct {
	job    *job.Job
	ctx    context.Context
	cancel context.CancelFunc
}

// Coordinator is the single point of mutation for the set of tracked
// tasks. Submissions are fire-and-enqueue: excess jobs wait for a free
// execution slot in FIFO order. Listener dispatch is synchronous from the
// goroutine that detected the transition.
type Coordinator struct {
	runner Runner
	sem    *semaphore.Weighted

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	tasks     map[uuid.UUID]*task
	listeners []event.Listener
}

// New creates a coordinator with the given execution slot count.
func New(runner Runner, cfg Config) *Coordinator {
	limit := cfg.MaxWorkers
	if limit <= 0 {
		limit = defaultMaxWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		runner:     runner,
		sem:        semaphore.NewWeighted(limit),
		rootCtx:    ctx,
		rootCancel: cancel,
		tasks:      make(map[uuid.UUID]*task),
	}
}

// Subscribe registers a listener for task lifecycle events.
func (c *Coordinator) Subscribe(l event.Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = append(c.listeners, l)
}

// Submit enqueues a pending job for execution and returns its task
// handle. Submitting a job whose id is already tracked and not terminal
// fails with ErrDuplicateSubmission; a terminal job must be Reset before
// it can run again.
func (c *Coordinator) Submit(j *job.Job) (uuid.UUID, error) {
	id := j.ID()

	c.mu.Lock()
	if t, ok := c.tasks[id]; ok && !t.job.Status().Terminal() {
		c.mu.Unlock()
		return uuid.Nil, fmt.Errorf("submit %s: %w", id, ErrDuplicateSubmission)
	}

	if st := j.Status(); st != job.StatusPending {
		c.mu.Unlock()
		return uuid.Nil, fmt.Errorf("submit %s: status %s: %w", id, st, job.ErrInvalidTransition)
	}

	ctx, cancel := context.WithCancel(c.rootCtx)
	t := &task{job: j, ctx: ctx, cancel: cancel}
	c.tasks[id] = t
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(t)

	return id, nil
}

// run waits for an execution slot, then drives the job through a worker.
// Semaphore waiters are served in FIFO order, which gives queued
// submissions their submission order.
func (c *Coordinator) run(t *task) {
	defer c.wg.Done()
	defer t.cancel()

	id := t.job.ID()

	if err := c.sem.Acquire(t.ctx, 1); err != nil {
		// Cancelled (or shut down) while still queued: the job never
		// starts and no started event fires.
		c.finishCancelled(t)
		return
	}
	defer c.sem.Release(1)

	if t.ctx.Err() != nil {
		c.finishCancelled(t)
		return
	}

	if err := t.job.MarkRunning(); err != nil {
		zlog.Logger.Error().Err(err).Str("task", id.String()).Msg("failed to start job")
		return
	}
	c.each(func(l event.Listener) { l.OnTaskStarted(id) })

	res, err := c.runner.Run(t.ctx, t.job, func(fraction float64) {
		t.job.SetProgress(fraction)
		c.each(func(l event.Listener) { l.OnTaskProgress(id, fraction) })
	})

	switch {
	case err != nil:
		if terr := t.job.MarkFailed(); terr != nil {
			zlog.Logger.Error().Err(terr).Str("task", id.String()).Msg("failed to mark job failed")
		}
		c.each(func(l event.Listener) { l.OnTaskFailed(id, err) })
	case res.Status == job.StatusCancelled:
		c.finishCancelled(t)
	default:
		if terr := t.job.MarkCompleted(); terr != nil {
			zlog.Logger.Error().Err(terr).Str("task", id.String()).Msg("failed to mark job completed")
		}
		c.each(func(l event.Listener) { l.OnTaskCompleted(id, res) })
	}
}

func (c *Coordinator) finishCancelled(t *task) {
	id := t.job.ID()

	if err := t.job.MarkCancelled(); err != nil {
		zlog.Logger.Error().Err(err).Str("task", id.String()).Msg("failed to mark job cancelled")
		return
	}

	c.each(func(l event.Listener) { l.OnTaskCancelled(id) })
}

// Cancel signals cancellation for the task behind the handle. A queued
// task is removed before any worker starts; a running one stops at the
// next image boundary. Cancelling twice is a safe no-op; cancelling a
// completed or failed task reports ErrAlreadyTerminal.
func (c *Coordinator) Cancel(handle uuid.UUID) error {
	c.mu.Lock()
	t, ok := c.tasks[handle]
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("cancel %s: %w", handle, ErrUnknownTask)
	}

	switch st := t.job.Status(); {
	case st == job.StatusCancelled:
		return nil
	case st.Terminal():
		return fmt.Errorf("cancel %s: status %s: %w", handle, st, ErrAlreadyTerminal)
	}

	t.cancel()

	return nil
}

// CancelAll cancels every non-terminal tracked task. Individual failures
// are collected and reported together, never raised mid-way.
func (c *Coordinator) CancelAll() error {
	c.mu.Lock()
	handles := make([]uuid.UUID, 0, len(c.tasks))
	for h, t := range c.tasks {
		if !t.job.Status().Terminal() {
			handles = append(handles, h)
		}
	}
	c.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := c.Cancel(h); err != nil && !errors.Is(err, ErrAlreadyTerminal) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Status returns the tracked task's lifecycle state.
func (c *Coordinator) Status(handle uuid.UUID) (job.Status, error) {
	j, err := c.Lookup(handle)
	if err != nil {
		return "", err
	}

	return j.Status(), nil
}

// Lookup returns the job behind a task handle.
func (c *Coordinator) Lookup(handle uuid.UUID) (*job.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tasks[handle]
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", handle, ErrUnknownTask)
	}

	return t.job, nil
}

// Shutdown cancels every in-flight task and waits for their goroutines to
// drain.
func (c *Coordinator) Shutdown() {
	c.rootCancel()
	c.wg.Wait()
}

// each dispatches one event to every listener. A panicking listener is
// recovered and logged so it cannot stop other listeners or the
// coordinator.
func (c *Coordinator) each(fn func(event.Listener)) {
	c.mu.Lock()
	listeners := make([]event.Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zlog.Logger.Error().Interface("panic", r).Msg("listener panicked")
				}
			}()
			fn(l)
		}()
	}
}
