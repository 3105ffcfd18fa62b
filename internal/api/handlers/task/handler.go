package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/batchpix/batchpix/internal/api/respond"
	"github.com/batchpix/batchpix/internal/coordinator"
	"github.com/batchpix/batchpix/internal/imagepool"
	"github.com/batchpix/batchpix/internal/job"
	"github.com/batchpix/batchpix/internal/model"
)

// scheduler defines the interface for submitting and controlling batch
// tasks.
type scheduler interface {
	Submit(j *job.Job) (uuid.UUID, error)
	Cancel(handle uuid.UUID) error
	CancelAll() error
	Status(handle uuid.UUID) (job.Status, error)
	Lookup(handle uuid.UUID) (*job.Job, error)
}

// runHistory defines the interface for reading recorded job runs.
type runHistory interface {
	ListRuns(ctx context.Context, limit int) ([]model.JobRun, error)
}

// Handler provides HTTP handlers for batch job endpoints.
type Handler struct {
	scheduler scheduler
	pool      *imagepool.Pool
	history   runHistory
}

// NewHandler creates a new Handler. history may be nil when no database
// is configured; the runs endpoint then reports 404.
func NewHandler(s scheduler, pool *imagepool.Pool, history runHistory) *Handler {
	return &Handler{scheduler: s, pool: pool, history: history}
}

// SubmitRequest is the job configuration sent by the client. When no
// sources are given the job runs over the whole image pool.
type SubmitRequest struct {
	Name       string            `json:"name"`
	Sources    []string          `json:"sources"`
	Operations []model.Operation `json:"operations"`
}

// Submit creates a job from the request body and enqueues it.
func (h *Handler) Submit(c *ginext.Context) {
	var req SubmitRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Err(err).Msg("failed to decode submit request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	sources := req.Sources
	if len(sources) == 0 {
		sources = h.pool.Refs()
	}
	if len(sources) == 0 {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("no source images"))
		return
	}

	j := job.New(model.JobConfig{
		Name:       req.Name,
		Sources:    sources,
		Operations: req.Operations,
	})

	handle, err := h.scheduler.Submit(j)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to submit job")
		respond.Fail(c, http.StatusConflict, err)
		return
	}

	respond.Created(c, map[string]interface{}{
		"task_id": handle,
		"name":    j.Name(),
		"sources": len(sources),
	})
}

// Status returns the task's lifecycle state and progress.
func (h *Handler) Status(c *ginext.Context) {
	handle, ok := h.parseHandle(c)
	if !ok {
		return
	}

	j, err := h.scheduler.Lookup(handle)
	if err != nil {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("task not found"))
		return
	}

	respond.OK(c, map[string]interface{}{
		"task_id":    handle,
		"name":       j.Name(),
		"status":     j.Status(),
		"progress":   j.Progress(),
		"operations": j.Operations(),
	})
}

// Cancel signals cancellation for the task.
func (h *Handler) Cancel(c *ginext.Context) {
	handle, ok := h.parseHandle(c)
	if !ok {
		return
	}

	if err := h.scheduler.Cancel(handle); err != nil {
		switch {
		case errors.Is(err, coordinator.ErrUnknownTask):
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("task not found"))
		case errors.Is(err, coordinator.ErrAlreadyTerminal):
			respond.Fail(c, http.StatusConflict, err)
		default:
			zlog.Logger.Err(err).Msg("failed to cancel task")
			respond.Fail(c, http.StatusInternalServerError, err)
		}
		return
	}

	respond.OK(c, map[string]interface{}{"task_id": handle, "cancelled": true})
}

// CancelAll cancels every non-terminal task.
func (h *Handler) CancelAll(c *ginext.Context) {
	if err := h.scheduler.CancelAll(); err != nil {
		zlog.Logger.Err(err).Msg("cancel all finished with failures")
		respond.Fail(c, http.StatusInternalServerError, err)
		return
	}

	respond.OK(c, map[string]interface{}{"cancelled": true})
}

// ListPool returns the image pool entries in order.
func (h *Handler) ListPool(c *ginext.Context) {
	respond.OK(c, h.pool.List())
}

// AddToPool appends an image reference to the pool.
func (h *Handler) AddToPool(c *ginext.Context) {
	var req struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil || req.Ref == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("ref is required"))
		return
	}

	respond.Created(c, h.pool.Add(req.Ref))
}

// RemoveFromPool deletes a pool entry by id.
func (h *Handler) RemoveFromPool(c *ginext.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return
	}

	if err := h.pool.Remove(id); err != nil {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("image not in pool"))
		return
	}

	c.Status(http.StatusNoContent)
}

// ListRuns returns the most recent recorded job runs.
func (h *Handler) ListRuns(c *ginext.Context) {
	if h.history == nil {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("run history not configured"))
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid limit"))
			return
		}
		limit = n
	}

	runs, err := h.history.ListRuns(c.Request.Context(), limit)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to list runs")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to list runs"))
		return
	}

	respond.OK(c, runs)
}

func (h *Handler) parseHandle(c *ginext.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	if idStr == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("missing id"))
		return uuid.Nil, false
	}

	handle, err := uuid.Parse(idStr)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return uuid.Nil, false
	}

	return handle, true
}
