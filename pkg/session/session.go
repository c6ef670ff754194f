// Package session implements the application-wide authentication session.
//
// A Manager owns the authenticated/unauthenticated state, delegates
// credential work to authenticator strategies resolved through a registry,
// mirrors every state change into a Store (write-through), and reconciles
// externally observed store changes against local in-flight operations.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/clientauth/sessionkit/pkg/authenticator"
	"github.com/clientauth/sessionkit/pkg/events"
	"github.com/clientauth/sessionkit/pkg/logging"
)

// AuthenticatedKey is the reserved content key holding the
// authenticator-issued payload.
const AuthenticatedKey = "authenticated"

// reservedContentKeys cannot be written through Set. Explicit list, not a
// naming convention.
var reservedContentKeys = map[string]struct{}{
	AuthenticatedKey: {},
}

var (
	// ErrReservedKey is returned by Set for keys in the reserved list.
	ErrReservedKey = errors.New("session: key is reserved")

	// ErrNoPersistedAuthenticator is returned by Restore when the persisted
	// snapshot does not name the strategy that issued it.
	ErrNoPersistedAuthenticator = errors.New("session: persisted data names no authenticator")
)

// Manager is the session lifecycle state machine.
//
// The busy flag is the sole mutual exclusion between store-originated
// reconciliation and caller-originated operations: while a local
// authenticate/invalidate/restore is in flight, store update notifications
// are dropped. It deliberately does not serialize two caller-originated
// operations against each other.
type Manager struct {
	registry *authenticator.Registry
	store    Store
	logger   logging.Logger

	mu                  sync.Mutex
	busy                bool
	authenticated       bool
	authenticatorID     string
	content             authenticator.Data
	attemptedTransition interface{}
	unbindAuthenticator []func()

	authenticationSucceeded events.Signal[struct{}]
	invalidationSucceeded   events.Signal[struct{}]
	invalidationFailed      events.Signal[error]

	unbindStore func()
}

// NewManager creates a Manager resolving strategies through registry and
// persisting through store. It immediately subscribes to the store's update
// notifications. A nil logger is replaced by a no-op logger.
func NewManager(registry *authenticator.Registry, store Store, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}

	m := &Manager{
		registry: registry,
		store:    store,
		logger:   logger.WithModule("session"),
		content:  authenticator.Data{AuthenticatedKey: authenticator.Data{}},
	}
	m.unbindStore = store.OnUpdate(m.handleStoreUpdate)
	return m
}

// Close unsubscribes from the store and from any bound authenticator. The
// manager must not be used afterwards.
func (m *Manager) Close() {
	m.unbindStore()
	m.mu.Lock()
	m.unbindAuthenticatorLocked()
	m.mu.Unlock()
}

// OnAuthenticationSucceeded subscribes to Unauthenticated->Authenticated
// transitions. Silent restores do not fire it; externally driven
// reconciliations do.
func (m *Manager) OnAuthenticationSucceeded(fn func()) func() {
	return m.authenticationSucceeded.Subscribe(func(struct{}) { fn() })
}

// OnInvalidationSucceeded subscribes to Authenticated->Unauthenticated
// transitions.
func (m *Manager) OnInvalidationSucceeded(fn func()) func() {
	return m.invalidationSucceeded.Subscribe(func(struct{}) { fn() })
}

// OnInvalidationFailed subscribes to failed Invalidate calls. The session
// stays authenticated when it fires.
func (m *Manager) OnInvalidationFailed(fn func(error)) func() {
	return m.invalidationFailed.Subscribe(fn)
}

// IsAuthenticated reports whether the session is authenticated.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// AuthenticatorID returns the name of the strategy owning the session, or ""
// when unauthenticated.
func (m *Manager) AuthenticatorID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticatorID
}

// Data returns a copy of the full session content, including the reserved
// authenticated payload.
func (m *Manager) Data() authenticator.Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content.Clone()
}

// Get reads a content key.
func (m *Manager) Get(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.content[key]
	return v, ok
}

// Set writes a caller-owned content key and persists the content. Reserved
// keys are rejected with ErrReservedKey.
func (m *Manager) Set(ctx context.Context, key string, value interface{}) error {
	if _, reserved := reservedContentKeys[key]; reserved {
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	}

	m.mu.Lock()
	m.content[key] = value
	snapshot := m.content.Clone()
	m.mu.Unlock()

	return m.store.Persist(ctx, snapshot)
}

// AttemptedTransition returns the pending navigation handle, if any.
func (m *Manager) AttemptedTransition() interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attemptedTransition
}

// SetAttemptedTransition records a pending navigation handle. It is cleared
// automatically on invalidation.
func (m *Manager) SetAttemptedTransition(t interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attemptedTransition = t
}

// Authenticate resolves the named strategy and exchanges the credentials for
// a session payload. On success the payload is installed, bound, and
// persisted; authenticationSucceeded fires only if the session was not
// already authenticated. On failure the local state is cleared, the cleared
// state is persisted, and the strategy's original error is returned.
func (m *Manager) Authenticate(ctx context.Context, authenticatorID string, credentials interface{}) error {
	m.beginOperation()
	defer m.endOperation()

	auth, err := m.registry.Get(authenticatorID)
	if err != nil {
		return err
	}

	data, err := auth.Authenticate(ctx, credentials)
	if err != nil {
		if clearErr := m.clear(ctx, nil, false); clearErr != nil {
			m.logger.Error("Failed to persist cleared session after authentication failure", "error", clearErr)
		}
		return err
	}

	return m.setup(ctx, authenticatorID, auth, data, true)
}

// Invalidate tears the session down through the bound strategy. When the
// session is not authenticated it is a no-op. On strategy failure the
// session stays authenticated, invalidationFailed fires, and the error is
// returned.
func (m *Manager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	if !m.authenticated {
		m.mu.Unlock()
		return nil
	}
	m.busy = true
	id := m.authenticatorID
	authData := authenticatedContent(m.content).Clone()
	m.mu.Unlock()
	defer m.endOperation()

	auth, err := m.registry.Get(id)
	if err != nil {
		m.invalidationFailed.Publish(err)
		return err
	}

	if err := auth.Invalidate(ctx, authData); err != nil {
		m.invalidationFailed.Publish(err)
		return err
	}

	return m.clear(ctx, nil, true)
}

// Restore loads the persisted snapshot and re-validates it through the
// strategy it names. Success installs the restored payload silently (no
// authenticationSucceeded). Failure clears the session while preserving the
// snapshot's non-authenticated content, persists, and returns the error;
// callers use that rejection at boot to show an anonymous UI.
func (m *Manager) Restore(ctx context.Context) error {
	m.beginOperation()
	defer m.endOperation()

	snapshot, err := m.store.Restore(ctx)
	if err != nil {
		if clearErr := m.clear(ctx, nil, false); clearErr != nil {
			m.logger.Error("Failed to persist cleared session after store failure", "error", clearErr)
		}
		return fmt.Errorf("session: store restore failed: %w", err)
	}

	return m.restoreFrom(ctx, snapshot, false)
}

// restoreFrom re-validates a snapshot. trigger controls whether the
// resulting transition emits lifecycle events; externally driven
// reconciliations pass true, boot-time Restore passes false.
func (m *Manager) restoreFrom(ctx context.Context, snapshot authenticator.Data, trigger bool) error {
	authData := authenticatedContent(snapshot)
	name, _ := authData[authenticator.AuthenticatorKey].(string)

	if name == "" {
		if err := m.clear(ctx, withoutAuthenticated(snapshot), trigger); err != nil {
			m.logger.Error("Failed to persist cleared session", "error", err)
		}
		return ErrNoPersistedAuthenticator
	}

	auth, err := m.registry.Get(name)
	if err != nil {
		if clearErr := m.clear(ctx, withoutAuthenticated(snapshot), trigger); clearErr != nil {
			m.logger.Error("Failed to persist cleared session", "error", clearErr)
		}
		return err
	}

	restored, err := auth.Restore(ctx, authData.Clone())
	if err != nil {
		if clearErr := m.clear(ctx, withoutAuthenticated(snapshot), trigger); clearErr != nil {
			m.logger.Error("Failed to persist cleared session", "error", clearErr)
		}
		return fmt.Errorf("session: authenticator %q rejected restore: %w", name, err)
	}

	m.mu.Lock()
	m.content = withoutAuthenticated(snapshot)
	m.mu.Unlock()

	return m.setup(ctx, name, auth, restored, trigger)
}

// setup installs an authenticated payload: binds the strategy's events,
// flips the state, persists write-through, and fires
// authenticationSucceeded when trigger is set and this is an actual
// Unauthenticated->Authenticated transition. A persistence failure rolls the
// in-memory state back to Unauthenticated.
func (m *Manager) setup(ctx context.Context, id string, auth authenticator.Authenticator, data authenticator.Data, trigger bool) error {
	m.mu.Lock()
	trigger = trigger && !m.authenticated

	authData := data.Clone()
	if authData == nil {
		authData = authenticator.Data{}
	}
	authData[authenticator.AuthenticatorKey] = id

	m.content[AuthenticatedKey] = authData
	m.authenticated = true
	m.authenticatorID = id
	m.bindToAuthenticatorLocked(auth)
	snapshot := m.content.Clone()
	m.mu.Unlock()

	if err := m.store.Persist(ctx, snapshot); err != nil {
		m.mu.Lock()
		m.content[AuthenticatedKey] = authenticator.Data{}
		m.authenticated = false
		m.authenticatorID = ""
		m.unbindAuthenticatorLocked()
		m.mu.Unlock()
		return fmt.Errorf("session: failed to persist session data: %w", err)
	}

	if trigger {
		m.authenticationSucceeded.Publish(struct{}{})
	}
	return nil
}

// clear drops the authenticated payload and persists the cleared content.
// When content is non-nil it replaces the caller-owned keys (its
// authenticated sub-object is discarded). invalidationSucceeded fires only
// when trigger is set and the session actually was authenticated.
func (m *Manager) clear(ctx context.Context, content authenticator.Data, trigger bool) error {
	m.mu.Lock()
	trigger = trigger && m.authenticated

	if content != nil {
		m.content = withoutAuthenticated(content)
	}
	if m.content == nil {
		m.content = authenticator.Data{}
	}
	m.content[AuthenticatedKey] = authenticator.Data{}
	m.authenticated = false
	m.authenticatorID = ""
	m.attemptedTransition = nil
	m.unbindAuthenticatorLocked()
	snapshot := m.content.Clone()
	m.mu.Unlock()

	err := m.store.Persist(ctx, snapshot)

	if trigger {
		m.invalidationSucceeded.Publish(struct{}{})
	}
	if err != nil {
		return fmt.Errorf("session: failed to persist cleared session data: %w", err)
	}
	return nil
}

func (m *Manager) beginOperation() {
	m.mu.Lock()
	m.busy = true
	m.mu.Unlock()
}

func (m *Manager) endOperation() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

// AuthenticatedData extracts the authenticated payload from a content
// snapshot, as returned by Manager.Data or Store.Restore. The result is a
// copy; an unauthenticated snapshot yields an empty payload.
func AuthenticatedData(content authenticator.Data) authenticator.Data {
	return authenticatedContent(content).Clone()
}

// authenticatedContent extracts the authenticated sub-object from a content
// snapshot, tolerating both Data and plain map values (the latter appear
// after JSON round trips).
func authenticatedContent(content authenticator.Data) authenticator.Data {
	switch v := content[AuthenticatedKey].(type) {
	case authenticator.Data:
		return v
	case map[string]interface{}:
		return authenticator.Data(v)
	default:
		return authenticator.Data{}
	}
}

// withoutAuthenticated copies a snapshot's caller-owned keys, dropping the
// reserved authenticated sub-object.
func withoutAuthenticated(content authenticator.Data) authenticator.Data {
	out := authenticator.Data{}
	for k, v := range content {
		if k == AuthenticatedKey {
			continue
		}
		out[k] = v
	}
	return out
}
