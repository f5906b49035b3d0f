// Package controller keeps the cancellation handles of in-flight streams,
// addressed by session and message index.
package controller

import (
	"context"
	"fmt"
	"sync"
)

// Registry maps "{session},{message}" keys to cancellation handles.
// At most one handle is stored per key; adding a second one replaces the
// first without cancelling it.
//
// The zero value is not usable; create one with NewRegistry.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]entry
	nextID      uint64
}

type entry struct {
	id     uint64
	cancel context.CancelFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{controllers: make(map[string]entry)}
}

// Key returns the registry key for a session and message index.
func Key(sessionIndex, messageIndex int) string {
	return fmt.Sprintf("%d,%d", sessionIndex, messageIndex)
}

// Add stores cancel under the key for (sessionIndex, messageIndex) and returns the key.
func (r *Registry) Add(sessionIndex, messageIndex int, cancel context.CancelFunc) string {
	key, _ := r.add(sessionIndex, messageIndex, cancel)
	return key
}

// Register stores cancel like Add and returns a release func that removes
// the entry only while it still holds this handle, so a stream that was
// replaced under the same key cannot drop its successor.
func (r *Registry) Register(sessionIndex, messageIndex int, cancel context.CancelFunc) (key string, release func()) {
	key, id := r.add(sessionIndex, messageIndex, cancel)
	return key, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if e, ok := r.controllers[key]; ok && e.id == id {
			delete(r.controllers, key)
		}
	}
}

func (r *Registry) add(sessionIndex, messageIndex int, cancel context.CancelFunc) (string, uint64) {
	key := Key(sessionIndex, messageIndex)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.controllers[key] = entry{id: r.nextID, cancel: cancel}
	return key, r.nextID
}

// Stop cancels the handle stored for (sessionIndex, messageIndex), if any.
// The entry stays in the registry until Remove is called.
func (r *Registry) Stop(sessionIndex, messageIndex int) {
	r.mu.Lock()
	e, ok := r.controllers[Key(sessionIndex, messageIndex)]
	r.mu.Unlock()
	if ok && e.cancel != nil {
		e.cancel()
	}
}

// StopAll cancels every stored handle.
func (r *Registry) StopAll() {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.controllers))
	for _, e := range r.controllers {
		cancels = append(cancels, e.cancel)
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		if cancel != nil {
			cancel()
		}
	}
}

// HasPending reports whether any handle is stored.
func (r *Registry) HasPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers) > 0
}

// Remove deletes the entry for (sessionIndex, messageIndex).
func (r *Registry) Remove(sessionIndex, messageIndex int) {
	r.mu.Lock()
	delete(r.controllers, Key(sessionIndex, messageIndex))
	r.mu.Unlock()
}

// Len returns the number of stored handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}
