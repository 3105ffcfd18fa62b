// Package event defines the passive observer contract the coordinator
// notifies on every task status transition, plus the listeners shipped
// with the service. Listeners are invoked synchronously from the thread
// that detected the transition and must be fast or defer their own heavy
// work.
package event

import (
	"github.com/google/uuid"

	"github.com/batchpix/batchpix/internal/worker"
)

// Listener observes task lifecycle transitions. Implementations must not
// block; a panicking listener is isolated by the coordinator and never
// stops other listeners.
type Listener interface {
	OnTaskStarted(id uuid.UUID)
	OnTaskProgress(id uuid.UUID, fraction float64)
	OnTaskCompleted(id uuid.UUID, result worker.Result)
	OnTaskFailed(id uuid.UUID, err error)
	OnTaskCancelled(id uuid.UUID)
}
