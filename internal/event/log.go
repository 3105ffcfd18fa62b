package event

import (
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/batchpix/batchpix/internal/worker"
)

// LogListener writes every task transition to the structured log.
type LogListener struct{}

// NewLogListener creates a logging listener.
func NewLogListener() *LogListener {
	return &LogListener{}
}

func (l *LogListener) OnTaskStarted(id uuid.UUID) {
	zlog.Logger.Info().Str("task", id.String()).Msg("task started")
}

func (l *LogListener) OnTaskProgress(id uuid.UUID, fraction float64) {
	zlog.Logger.Debug().Str("task", id.String()).Float64("fraction", fraction).Msg("task progress")
}

func (l *LogListener) OnTaskCompleted(id uuid.UUID, result worker.Result) {
	zlog.Logger.Info().
		Str("task", id.String()).
		Int("completed", result.CompletedCount).
		Int("failed", len(result.Errors)).
		Msg("task completed")
}

func (l *LogListener) OnTaskFailed(id uuid.UUID, err error) {
	zlog.Logger.Error().Str("task", id.String()).Err(err).Msg("task failed")
}

func (l *LogListener) OnTaskCancelled(id uuid.UUID) {
	zlog.Logger.Info().Str("task", id.String()).Msg("task cancelled")
}
