package coordinator

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/batchpix/batchpix/internal/effect"
	"github.com/batchpix/batchpix/internal/job"
	"github.com/batchpix/batchpix/internal/model"
	"github.com/batchpix/batchpix/internal/worker"
)

type rec struct {
	kind     string
	fraction float64
}

// recorder collects events per task and signals terminal transitions.
type recorder struct {
	mu       sync.Mutex
	events   map[uuid.UUID][]rec
	terminal chan uuid.UUID
}

func newRecorder() *recorder {
	return &recorder{
		events:   make(map[uuid.UUID][]rec),
		terminal: make(chan uuid.UUID, 16),
	}
}

func (r *recorder) add(id uuid.UUID, e rec) {
	r.mu.Lock()
	r.events[id] = append(r.events[id], e)
	r.mu.Unlock()
}

func (r *recorder) eventsFor(id uuid.UUID) []rec {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]rec, len(r.events[id]))
	copy(out, r.events[id])

	return out
}

func (r *recorder) OnTaskStarted(id uuid.UUID) { r.add(id, rec{kind: "started"}) }

func (r *recorder) OnTaskProgress(id uuid.UUID, fraction float64) {
	r.add(id, rec{kind: "progress", fraction: fraction})
}

func (r *recorder) OnTaskCompleted(id uuid.UUID, _ worker.Result) {
	r.add(id, rec{kind: "completed"})
	r.terminal <- id
}

func (r *recorder) OnTaskFailed(id uuid.UUID, _ error) {
	r.add(id, rec{kind: "failed"})
	r.terminal <- id
}

func (r *recorder) OnTaskCancelled(id uuid.UUID) {
	r.add(id, rec{kind: "cancelled"})
	r.terminal <- id
}

func (r *recorder) waitTerminal(t *testing.T, id uuid.UUID) {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-r.terminal:
			if got == id {
				return
			}
		case <-deadline:
			t.Fatalf("task %s never reached a terminal state", id)
		}
	}
}

type stubRunner struct {
	fn func(ctx context.Context, j *job.Job, onProgress func(float64)) (worker.Result, error)
}

func (s *stubRunner) Run(ctx context.Context, j *job.Job, onProgress func(float64)) (worker.Result, error) {
	return s.fn(ctx, j, onProgress)
}

func completingRunner(total int) *stubRunner {
	return &stubRunner{fn: func(_ context.Context, _ *job.Job, onProgress func(float64)) (worker.Result, error) {
		for i := 1; i <= total; i++ {
			onProgress(float64(i) / float64(total))
		}
		return worker.Result{Status: job.StatusCompleted, CompletedCount: total}, nil
	}}
}

func newTestJob(name string) *job.Job {
	return job.New(model.JobConfig{Name: name, Sources: []string{"a.jpg", "b.jpg", "c.jpg"}})
}

func TestCoordinator_SubmitRunsJobAndNotifiesInOrder(t *testing.T) {
	c := New(completingRunner(3), Config{MaxWorkers: 2})
	defer c.Shutdown()

	r := newRecorder()
	c.Subscribe(r)

	j := newTestJob("J1")
	handle, err := c.Submit(j)
	require.NoError(t, err)
	require.Equal(t, j.ID(), handle)

	r.waitTerminal(t, handle)

	events := r.eventsFor(handle)
	require.Len(t, events, 5)
	assert.Equal(t, "started", events[0].kind)
	assert.Equal(t, "progress", events[1].kind)
	assert.InDelta(t, 1.0/3, events[1].fraction, 1e-9)
	assert.Equal(t, "progress", events[2].kind)
	assert.InDelta(t, 2.0/3, events[2].fraction, 1e-9)
	assert.Equal(t, "progress", events[3].kind)
	assert.InDelta(t, 1.0, events[3].fraction, 1e-9)
	assert.Equal(t, "completed", events[4].kind)

	st, err := c.Status(handle)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, st)
	assert.InDelta(t, 1.0, j.Progress(), 1e-9)
}

func TestCoordinator_DuplicateSubmission(t *testing.T) {
	release := make(chan struct{})
	blocking := &stubRunner{fn: func(ctx context.Context, _ *job.Job, _ func(float64)) (worker.Result, error) {
		<-release
		return worker.Result{Status: job.StatusCompleted}, nil
	}}

	c := New(blocking, Config{MaxWorkers: 1})
	defer c.Shutdown()

	r := newRecorder()
	c.Subscribe(r)

	j := newTestJob("dup")
	handle, err := c.Submit(j)
	require.NoError(t, err)

	_, err = c.Submit(j)
	require.ErrorIs(t, err, ErrDuplicateSubmission)

	close(release)
	r.waitTerminal(t, handle)

	// A terminal job cannot be resubmitted until it is explicitly reset.
	_, err = c.Submit(j)
	require.ErrorIs(t, err, job.ErrInvalidTransition)

	require.NoError(t, j.Reset())
	_, err = c.Submit(j)
	require.NoError(t, err)
	r.waitTerminal(t, handle)
}

func TestCoordinator_CancelPendingNeverStarts(t *testing.T) {
	release := make(chan struct{})
	blocking := &stubRunner{fn: func(ctx context.Context, _ *job.Job, _ func(float64)) (worker.Result, error) {
		select {
		case <-release:
			return worker.Result{Status: job.StatusCompleted}, nil
		case <-ctx.Done():
			return worker.Result{Status: job.StatusCancelled}, nil
		}
	}}

	c := New(blocking, Config{MaxWorkers: 1})
	defer c.Shutdown()

	r := newRecorder()
	c.Subscribe(r)

	first, err := c.Submit(newTestJob("running"))
	require.NoError(t, err)

	// Wait until the first job holds the only slot.
	require.Eventually(t, func() bool {
		st, _ := c.Status(first)
		return st == job.StatusRunning
	}, 5*time.Second, time.Millisecond)

	queued, err := c.Submit(newTestJob("queued"))
	require.NoError(t, err)

	require.NoError(t, c.Cancel(queued))
	r.waitTerminal(t, queued)

	// The queued job was removed before any worker touched it: no started
	// event, just the cancellation.
	events := r.eventsFor(queued)
	require.Len(t, events, 1)
	assert.Equal(t, "cancelled", events[0].kind)

	st, err := c.Status(queued)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelled, st)

	close(release)
	r.waitTerminal(t, first)
}

func TestCoordinator_CancelRunningStopsAtImageBoundary(t *testing.T) {
	runner := &stubRunner{fn: func(ctx context.Context, _ *job.Job, onProgress func(float64)) (worker.Result, error) {
		onProgress(0.2)
		onProgress(0.4)
		<-ctx.Done()
		return worker.Result{Status: job.StatusCancelled, CompletedCount: 2, SkippedCount: 3}, nil
	}}

	c := New(runner, Config{MaxWorkers: 1})
	defer c.Shutdown()

	r := newRecorder()
	c.Subscribe(r)

	handle, err := c.Submit(newTestJob("cancel-me"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(r.eventsFor(handle)) >= 3 // started + two progress events
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, c.Cancel(handle))
	r.waitTerminal(t, handle)

	events := r.eventsFor(handle)
	assert.Equal(t, "cancelled", events[len(events)-1].kind)

	// Idempotent: a second cancel is a safe no-op.
	require.NoError(t, c.Cancel(handle))

	st, err := c.Status(handle)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelled, st)
}

func TestCoordinator_CancelTerminalReportsAlreadyTerminal(t *testing.T) {
	c := New(completingRunner(1), Config{MaxWorkers: 1})
	defer c.Shutdown()

	r := newRecorder()
	c.Subscribe(r)

	handle, err := c.Submit(newTestJob("done"))
	require.NoError(t, err)
	r.waitTerminal(t, handle)

	require.ErrorIs(t, c.Cancel(handle), ErrAlreadyTerminal)
}

func TestCoordinator_UnknownTask(t *testing.T) {
	c := New(completingRunner(1), Config{MaxWorkers: 1})
	defer c.Shutdown()

	_, err := c.Status(uuid.New())
	require.ErrorIs(t, err, ErrUnknownTask)

	require.ErrorIs(t, c.Cancel(uuid.New()), ErrUnknownTask)

	_, err = c.Lookup(uuid.New())
	require.ErrorIs(t, err, ErrUnknownTask)
}

func TestCoordinator_QueueIsFIFO(t *testing.T) {
	var mu sync.Mutex
	var startedOrder []uuid.UUID

	gate := make(chan struct{}, 1)
	runner := &stubRunner{fn: func(_ context.Context, j *job.Job, _ func(float64)) (worker.Result, error) {
		mu.Lock()
		startedOrder = append(startedOrder, j.ID())
		mu.Unlock()
		<-gate
		return worker.Result{Status: job.StatusCompleted}, nil
	}}

	c := New(runner, Config{MaxWorkers: 1})
	defer c.Shutdown()

	r := newRecorder()
	c.Subscribe(r)

	var handles []uuid.UUID
	for i := 0; i < 3; i++ {
		j := newTestJob(fmt.Sprintf("job-%d", i))
		h, err := c.Submit(j)
		require.NoError(t, err)
		handles = append(handles, h)

		// Let each submission reach the semaphore before the next one so
		// the FIFO order is deterministic.
		if i == 0 {
			require.Eventually(t, func() bool {
				st, _ := c.Status(h)
				return st == job.StatusRunning
			}, 5*time.Second, time.Millisecond)
		} else {
			time.Sleep(20 * time.Millisecond)
		}
	}

	for range handles {
		gate <- struct{}{}
	}
	for _, h := range handles {
		r.waitTerminal(t, h)
	}

	assert.Equal(t, handles, startedOrder)
}

func TestCoordinator_CancelAll(t *testing.T) {
	runner := &stubRunner{fn: func(ctx context.Context, _ *job.Job, _ func(float64)) (worker.Result, error) {
		<-ctx.Done()
		return worker.Result{Status: job.StatusCancelled}, nil
	}}

	c := New(runner, Config{MaxWorkers: 2})
	defer c.Shutdown()

	r := newRecorder()
	c.Subscribe(r)

	h1, err := c.Submit(newTestJob("one"))
	require.NoError(t, err)
	h2, err := c.Submit(newTestJob("two"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s1, _ := c.Status(h1)
		s2, _ := c.Status(h2)
		return s1 == job.StatusRunning && s2 == job.StatusRunning
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, c.CancelAll())

	r.waitTerminal(t, h1)
	r.waitTerminal(t, h2)

	s1, _ := c.Status(h1)
	s2, _ := c.Status(h2)
	assert.Equal(t, job.StatusCancelled, s1)
	assert.Equal(t, job.StatusCancelled, s2)

	// Everything is terminal now: a second sweep has nothing to do and
	// reports no failures.
	require.NoError(t, c.CancelAll())
}

type panickyListener struct{}

func (panickyListener) OnTaskStarted(uuid.UUID)                  { panic("listener bug") }
func (panickyListener) OnTaskProgress(uuid.UUID, float64)        { panic("listener bug") }
func (panickyListener) OnTaskCompleted(uuid.UUID, worker.Result) { panic("listener bug") }
func (panickyListener) OnTaskFailed(uuid.UUID, error)            { panic("listener bug") }
func (panickyListener) OnTaskCancelled(uuid.UUID)                { panic("listener bug") }

func TestCoordinator_ListenerPanicIsIsolated(t *testing.T) {
	c := New(completingRunner(2), Config{MaxWorkers: 1})
	defer c.Shutdown()

	r := newRecorder()
	c.Subscribe(panickyListener{}) // registered first, panics on every event
	c.Subscribe(r)

	handle, err := c.Submit(newTestJob("shielded"))
	require.NoError(t, err)
	r.waitTerminal(t, handle)

	events := r.eventsFor(handle)
	require.Len(t, events, 4) // started, two progress, completed
	assert.Equal(t, "completed", events[len(events)-1].kind)
}

func TestCoordinator_FailedRunMarksJobFailed(t *testing.T) {
	runner := &stubRunner{fn: func(context.Context, *job.Job, func(float64)) (worker.Result, error) {
		return worker.Result{}, fmt.Errorf("out of memory")
	}}

	c := New(runner, Config{MaxWorkers: 1})
	defer c.Shutdown()

	r := newRecorder()
	c.Subscribe(r)

	handle, err := c.Submit(newTestJob("doomed"))
	require.NoError(t, err)
	r.waitTerminal(t, handle)

	st, err := c.Status(handle)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, st)

	events := r.eventsFor(handle)
	assert.Equal(t, "failed", events[len(events)-1].kind)
}

// Full stack: real worker, real effect registry, in-memory image source.
type memProvider struct{}

func (memProvider) Load(context.Context, string) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func TestCoordinator_EndToEndWithWorker(t *testing.T) {
	w := worker.New(memProvider{}, nil, effect.NewRegistry(), retry.Strategy{})

	c := New(w, Config{MaxWorkers: 2})
	defer c.Shutdown()

	r := newRecorder()
	c.Subscribe(r)

	j := job.New(model.JobConfig{
		Name:    "J1",
		Sources: []string{"1.jpg", "2.jpg", "3.jpg"},
		Operations: []model.Operation{
			model.NewOperation("grayscale", nil),
			model.NewOperation("invert", nil),
		},
	})

	handle, err := c.Submit(j)
	require.NoError(t, err)
	r.waitTerminal(t, handle)

	events := r.eventsFor(handle)
	require.Len(t, events, 5)
	assert.Equal(t, "started", events[0].kind)
	assert.InDelta(t, 1.0/3, events[1].fraction, 1e-9)
	assert.InDelta(t, 2.0/3, events[2].fraction, 1e-9)
	assert.InDelta(t, 1.0, events[3].fraction, 1e-9)
	assert.Equal(t, "completed", events[4].kind)

	st, err := c.Status(handle)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, st)
}
