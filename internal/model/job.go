package model

import (
	"time"

	"github.com/google/uuid"
)

// JobConfig is the plain, serializable input a job is constructed from.
type JobConfig struct {
	Name       string      `json:"name"`
	Sources    []string    `json:"sources"`    // source image references, stable order
	Operations []Operation `json:"operations"` // initial pipeline contents
}

// JobRun is the audit record written after a job reaches a terminal state.
type JobRun struct {
	TaskID         uuid.UUID `json:"task_id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	CompletedCount int       `json:"completed_count"`
	FailedCount    int       `json:"failed_count"`
	FinishedAt     time.Time `json:"finished_at"`
}

// TaskEvent is the serialized form of a coordinator event, published to
// external consumers over the message queue.
type TaskEvent struct {
	TaskID         uuid.UUID `json:"task_id"`
	Type           string    `json:"type"` // started / progress / completed / failed / cancelled
	Fraction       float64   `json:"fraction,omitempty"`
	CompletedCount int       `json:"completed_count,omitempty"`
	FailedCount    int       `json:"failed_count,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
