package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/batchpix/batchpix/internal/model"
	"github.com/batchpix/batchpix/internal/worker"
)

// producer defines the interface for publishing task events to a message
// broker (e.g., Kafka).
type producer interface {
	Produce(ctx context.Context, ev model.TaskEvent) error
}

// KafkaNotifier forwards task transitions to external consumers through a
// broker. Publish failures are logged and dropped; event delivery never
// blocks or fails the coordinator.
type KafkaNotifier struct {
	producer producer
}

// NewKafkaNotifier creates a notifier over the given producer.
func NewKafkaNotifier(p producer) *KafkaNotifier {
	return &KafkaNotifier{producer: p}
}

func (n *KafkaNotifier) publish(ev model.TaskEvent) {
	ev.Timestamp = time.Now()

	if err := n.producer.Produce(context.Background(), ev); err != nil {
		zlog.Logger.Err(err).Str("task", ev.TaskID.String()).Msg("failed to publish task event")
	}
}

func (n *KafkaNotifier) OnTaskStarted(id uuid.UUID) {
	n.publish(model.TaskEvent{TaskID: id, Type: "started"})
}

func (n *KafkaNotifier) OnTaskProgress(id uuid.UUID, fraction float64) {
	n.publish(model.TaskEvent{TaskID: id, Type: "progress", Fraction: fraction})
}

func (n *KafkaNotifier) OnTaskCompleted(id uuid.UUID, result worker.Result) {
	n.publish(model.TaskEvent{
		TaskID:         id,
		Type:           "completed",
		Fraction:       1,
		CompletedCount: result.CompletedCount,
		FailedCount:    len(result.Errors),
	})
}

func (n *KafkaNotifier) OnTaskFailed(id uuid.UUID, err error) {
	n.publish(model.TaskEvent{TaskID: id, Type: "failed", Error: err.Error()})
}

func (n *KafkaNotifier) OnTaskCancelled(id uuid.UUID) {
	n.publish(model.TaskEvent{TaskID: id, Type: "cancelled"})
}
