// Package worker executes a job's pipeline against each of its source
// images, reporting progress and honoring cooperative cancellation.
package worker

import (
	"context"
	"fmt"
	"image"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/batchpix/batchpix/internal/job"
	"github.com/batchpix/batchpix/internal/model"
	"github.com/batchpix/batchpix/internal/source"
)

// applier resolves and applies one operation to an image buffer.
type applier interface {
	Apply(img image.Image, op model.Operation) (image.Image, error)
}

// ImageError is a recoverable failure scoped to one source image.
type ImageError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e ImageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying cause.
func (e ImageError) Unwrap() error { return e.Err }

// Result summarizes one job execution.
type Result struct {
	Status         job.Status
	CompletedCount int // images attempted, successes and failures alike
	SkippedCount   int // images never reached because of cancellation
	Errors         []ImageError
}

// Worker applies a job's pipeline to its source images one by one.
// One worker runs one job at a time; the coordinator owns the fan-out.
type Worker struct {
	provider source.Provider
	sink     source.Sink
	effects  applier
	strategy retry.Strategy
}

// New creates a worker. The sink may be nil when processed buffers are
// discarded (dry runs). Source loads are retried per the given strategy.
func New(provider source.Provider, sink source.Sink, effects applier, strategy retry.Strategy) *Worker {
	if strategy.Attempts <= 0 {
		strategy.Attempts = 1
	}

	return &Worker{
		provider: provider,
		sink:     sink,
		effects:  effects,
		strategy: strategy,
	}
}

// Run executes the job's pipeline snapshot over its sources in order.
//
// Failures inside a single image are recorded and processing continues
// with the next image. The cancellation signal is checked between images
// only; an operation already in flight finishes first. Progress is
// reported after every attempted image as completed/total, so fractions
// for one job arrive strictly increasing. Anything that escapes the
// per-image loop, including a panicking transform, fails the whole job.
func (w *Worker) Run(ctx context.Context, j *job.Job, onProgress func(fraction float64)) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	ops := j.Operations() // pipeline snapshot at dispatch time
	sources := j.Sources()
	total := len(sources)

	for i, ref := range sources {
		if ctx.Err() != nil {
			res.Status = job.StatusCancelled
			res.SkippedCount = total - i

			return res, nil
		}

		if perr := w.processImage(ctx, ref, ops); perr != nil {
			zlog.Logger.Warn().
				Str("job", j.Name()).
				Str("image", ref).
				Err(perr.Err).
				Msg("image processing failed")
			res.Errors = append(res.Errors, *perr)
		}

		res.CompletedCount++
		if onProgress != nil {
			onProgress(float64(res.CompletedCount) / float64(total))
		}
	}

	res.Status = job.StatusCompleted

	return res, nil
}

// processImage runs the full pipeline over one source image. A failure at
// any stage aborts this image only.
func (w *Worker) processImage(ctx context.Context, ref string, ops []model.Operation) *ImageError {
	var img image.Image

	err := retry.Do(func() error {
		var loadErr error
		img, loadErr = w.provider.Load(ctx, ref)
		return loadErr
	}, w.strategy)
	if err != nil {
		return &ImageError{Ref: ref, Err: fmt.Errorf("load: %w", err)}
	}

	for _, op := range ops {
		img, err = w.effects.Apply(img, op)
		if err != nil {
			return &ImageError{Ref: ref, Err: err}
		}
	}

	if w.sink == nil {
		return nil
	}

	if _, err := w.sink.Save(ctx, ref, img); err != nil {
		return &ImageError{Ref: ref, Err: fmt.Errorf("save: %w", err)}
	}

	return nil
}
