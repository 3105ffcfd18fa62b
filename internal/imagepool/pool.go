// Package imagepool holds the flat list of images available to build jobs
// from. The pool is plain storage: it knows nothing about scheduling, and
// the coordinator never touches it.
package imagepool

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an entry id is not in the pool.
var ErrNotFound = errors.New("image not in pool")

// Entry is one image in the pool.
type Entry struct {
	ID      uuid.UUID `json:"id"`
	Ref     string    `json:"ref"` // source reference understood by the provider
	AddedAt time.Time `json:"added_at"`
}

// Pool is an ordered, concurrency-safe list of image entries.
type Pool struct {
	mu      sync.RWMutex
	entries []Entry
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{}
}

// Add appends an image reference and returns its entry.
func (p *Pool) Add(ref string) Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := Entry{ID: uuid.New(), Ref: ref, AddedAt: time.Now()}
	p.entries = append(p.entries, e)

	return e
}

// Remove deletes the entry with the given id, preserving the order of the
// remaining entries.
func (p *Pool) Remove(id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, e := range p.entries {
		if e.ID == id {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return nil
		}
	}

	return ErrNotFound
}

// Get returns the entry with the given id.
func (p *Pool) Get(id uuid.UUID) (Entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, e := range p.entries {
		if e.ID == id {
			return e, nil
		}
	}

	return Entry{}, ErrNotFound
}

// List returns the entries in insertion order.
func (p *Pool) List() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Entry, len(p.entries))
	copy(out, p.entries)

	return out
}

// Refs returns the source references in insertion order.
func (p *Pool) Refs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	refs := make([]string, len(p.entries))
	for i, e := range p.entries {
		refs[i] = e.Ref
	}

	return refs
}

// Len returns the number of entries.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.entries)
}

// Clear drops every entry.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = nil
}
