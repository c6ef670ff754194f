package session

import (
	"context"

	"github.com/clientauth/sessionkit/pkg/authenticator"
)

// handleStoreUpdate reconciles a session content change observed by the
// store in another execution context. While a local operation is in flight
// (busy), the notification is dropped: the local operation is authoritative
// and persists its own final state. Otherwise the pushed content is treated
// like a restore outcome, re-validated through the named strategy, and the
// resulting transition emits lifecycle events since it is externally driven.
func (m *Manager) handleStoreUpdate(content authenticator.Data) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		m.logger.Debug("Dropping store update, local operation in flight")
		return
	}
	m.mu.Unlock()

	if err := m.restoreFrom(context.Background(), content, true); err != nil {
		m.logger.Debug("Store update did not restore an authenticated session", "error", err)
	}
}

// bindToAuthenticatorLocked subscribes to the strategy's autonomous events,
// tearing down any prior binding first. At most one strategy is bound at a
// time. Callers must hold m.mu.
func (m *Manager) bindToAuthenticatorLocked(auth authenticator.Authenticator) {
	m.unbindAuthenticatorLocked()

	notifier, ok := auth.(authenticator.Notifier)
	if !ok {
		return
	}

	m.unbindAuthenticator = []func(){
		notifier.OnDataUpdated(m.handleAuthenticatorDataUpdated),
		notifier.OnInvalidated(m.handleAuthenticatorInvalidated),
	}
}

func (m *Manager) unbindAuthenticatorLocked() {
	for _, cancel := range m.unbindAuthenticator {
		cancel()
	}
	m.unbindAuthenticator = nil
}

// handleAuthenticatorDataUpdated replaces the authenticated payload after an
// autonomous refresh. This is a same-state transition: the content is
// persisted but no lifecycle event fires.
func (m *Manager) handleAuthenticatorDataUpdated(data authenticator.Data) {
	m.mu.Lock()
	if !m.authenticated {
		m.mu.Unlock()
		return
	}

	authData := data.Clone()
	if authData == nil {
		authData = authenticator.Data{}
	}
	authData[authenticator.AuthenticatorKey] = m.authenticatorID
	m.content[AuthenticatedKey] = authData
	snapshot := m.content.Clone()
	m.mu.Unlock()

	if err := m.store.Persist(context.Background(), snapshot); err != nil {
		m.logger.Error("Failed to persist refreshed session data", "error", err)
	}
}

// handleAuthenticatorInvalidated clears the session when the bound strategy
// declares its payload invalid.
func (m *Manager) handleAuthenticatorInvalidated(reason error) {
	m.logger.Info("Authenticator invalidated the session", "error", reason)
	if err := m.clear(context.Background(), nil, true); err != nil {
		m.logger.Error("Failed to persist session after authenticator invalidation", "error", err)
	}
}
