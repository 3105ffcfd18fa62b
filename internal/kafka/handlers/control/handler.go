package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/batchpix/batchpix/internal/coordinator"
)

// canceller defines the interface for cancelling tracked tasks.
type canceller interface {
	Cancel(handle uuid.UUID) error
	CancelAll() error
}

// Command is a remote control message for the coordinator.
type Command struct {
	Action string    `json:"action"` // "cancel" or "cancel_all"
	TaskID uuid.UUID `json:"task_id,omitempty"`
}

// Handler handles Kafka control messages that cancel running batches from
// outside the process.
type Handler struct {
	coordinator canceller
}

// NewHandler creates a new handler over the given coordinator.
func NewHandler(c canceller) *Handler {
	return &Handler{coordinator: c}
}

// Handle processes one control message. Cancels that arrive for unknown
// or already-terminal tasks are logged and dropped, not retried.
func (h *Handler) Handle(_ context.Context, msg kafka.Message) error {
	var cmd Command
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}

	switch cmd.Action {
	case "cancel":
		err := h.coordinator.Cancel(cmd.TaskID)
		if errors.Is(err, coordinator.ErrUnknownTask) || errors.Is(err, coordinator.ErrAlreadyTerminal) {
			zlog.Logger.Warn().Str("task", cmd.TaskID.String()).Err(err).Msg("cancel command dropped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("cancel task: %w", err)
		}

		zlog.Logger.Info().Str("task", cmd.TaskID.String()).Msg("task cancelled by control message")

		return nil
	case "cancel_all":
		if err := h.coordinator.CancelAll(); err != nil {
			zlog.Logger.Err(err).Msg("cancel_all finished with failures")
		}

		return nil
	default:
		return fmt.Errorf("unknown control action: %q", cmd.Action)
	}
}
