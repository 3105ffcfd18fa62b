package effect

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/batchpix/batchpix/internal/model"
)

// ErrUnknownEffect is returned when an operation's kind has no registered
// transform. The worker surfaces it as a per-image error.
var ErrUnknownEffect = errors.New("unknown effect kind")

// Transform applies one effect to an image and returns the result. A
// transform is a pure function of its inputs: it must not mutate the
// source image or any shared state.
type Transform func(img image.Image, params map[string]string) (image.Image, error)

// Registry resolves an operation kind to its executable transform.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]Transform
}

// NewRegistry creates a registry pre-populated with the built-in effects.
func NewRegistry() *Registry {
	r := &Registry{transforms: make(map[string]Transform)}

	for kind, t := range builtins() {
		r.transforms[kind] = t
	}

	return r
}

// Register adds or replaces the transform for a kind.
func (r *Registry) Register(kind string, t Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transforms[kind] = t
}

// Kinds returns the registered effect kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.transforms))
	for k := range r.transforms {
		kinds = append(kinds, k)
	}

	return kinds
}

// Apply resolves op.Kind and applies it to img.
func (r *Registry) Apply(img image.Image, op model.Operation) (image.Image, error) {
	r.mu.RLock()
	t, ok := r.transforms[op.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEffect, op.Kind)
	}

	out, err := t(img, op.Params)
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", op.Kind, err)
	}

	return out, nil
}
