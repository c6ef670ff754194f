package store

import (
	"context"
	"sync"

	"github.com/clientauth/sessionkit/pkg/authenticator"
)

// Ephemeral keeps the session content in process memory. It is volatile,
// shared with nothing, and therefore never emits update notifications.
// Default backend, also used throughout the tests.
type Ephemeral struct {
	mu   sync.Mutex
	data authenticator.Data
}

// NewEphemeral creates an empty in-memory store.
func NewEphemeral() *Ephemeral {
	return &Ephemeral{data: authenticator.Data{}}
}

// Restore returns the last persisted content.
func (e *Ephemeral) Restore(ctx context.Context) (authenticator.Data, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data.Clone(), nil
}

// Persist stores a copy of data.
func (e *Ephemeral) Persist(ctx context.Context, data authenticator.Data) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = data.Clone()
	return nil
}

// OnUpdate never fires for an ephemeral store; the returned cancel function
// is a no-op.
func (e *Ephemeral) OnUpdate(fn func(authenticator.Data)) func() {
	return func() {}
}

// Close releases nothing.
func (e *Ephemeral) Close() error {
	return nil
}
