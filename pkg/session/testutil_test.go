package session

import (
	"context"
	"errors"
	"sync"

	"github.com/clientauth/sessionkit/pkg/authenticator"
	"github.com/clientauth/sessionkit/pkg/events"
)

// fakeStore is an in-memory Store with scriptable failures and a manual
// external-update trigger.
type fakeStore struct {
	mu           sync.Mutex
	data         authenticator.Data
	persistCalls int
	persistErr   error
	restoreErr   error
	updates      events.Signal[authenticator.Data]
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: authenticator.Data{}}
}

func (s *fakeStore) Restore(ctx context.Context) (authenticator.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restoreErr != nil {
		return nil, s.restoreErr
	}
	return s.data.Clone(), nil
}

func (s *fakeStore) Persist(ctx context.Context, data authenticator.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistErr != nil {
		return s.persistErr
	}
	s.data = data.Clone()
	s.persistCalls++
	return nil
}

func (s *fakeStore) OnUpdate(fn func(authenticator.Data)) func() {
	return s.updates.Subscribe(fn)
}

// notify simulates a change observed in another execution context.
func (s *fakeStore) notify(data authenticator.Data) {
	s.updates.Publish(data)
}

func (s *fakeStore) persisted() authenticator.Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

func (s *fakeStore) setPersisted(data authenticator.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data.Clone()
}

var errFakeRejected = errors.New("fake authenticator rejected")

// fakeAuthenticator is a scriptable strategy that also implements
// authenticator.Notifier.
type fakeAuthenticator struct {
	mu              sync.Mutex
	authenticateFn  func(ctx context.Context, credentials interface{}) (authenticator.Data, error)
	restoreFn       func(ctx context.Context, data authenticator.Data) (authenticator.Data, error)
	invalidateFn    func(ctx context.Context, data authenticator.Data) error
	restoreCalls    int
	invalidatedWith authenticator.Data

	dataUpdated events.Signal[authenticator.Data]
	invalidated events.Signal[error]
}

func newFakeAuthenticator() *fakeAuthenticator {
	return &fakeAuthenticator{}
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, credentials interface{}) (authenticator.Data, error) {
	f.mu.Lock()
	fn := f.authenticateFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, credentials)
	}
	return authenticator.Data{"access_token": "FAKE"}, nil
}

func (f *fakeAuthenticator) Restore(ctx context.Context, data authenticator.Data) (authenticator.Data, error) {
	f.mu.Lock()
	f.restoreCalls++
	fn := f.restoreFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, data)
	}
	if token, _ := data["access_token"].(string); token == "" {
		return nil, errFakeRejected
	}
	return data, nil
}

func (f *fakeAuthenticator) Invalidate(ctx context.Context, data authenticator.Data) error {
	f.mu.Lock()
	f.invalidatedWith = data.Clone()
	fn := f.invalidateFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, data)
	}
	return nil
}

func (f *fakeAuthenticator) OnDataUpdated(fn func(authenticator.Data)) func() {
	return f.dataUpdated.Subscribe(fn)
}

func (f *fakeAuthenticator) OnInvalidated(fn func(error)) func() {
	return f.invalidated.Subscribe(fn)
}

func (f *fakeAuthenticator) restoreCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restoreCalls
}

// eventCounter records manager lifecycle events.
type eventCounter struct {
	mu                sync.Mutex
	authSucceeded     int
	invSucceeded      int
	invFailed         int
	lastInvFailedWith error
}

func recordEvents(m *Manager) *eventCounter {
	c := &eventCounter{}
	m.OnAuthenticationSucceeded(func() {
		c.mu.Lock()
		c.authSucceeded++
		c.mu.Unlock()
	})
	m.OnInvalidationSucceeded(func() {
		c.mu.Lock()
		c.invSucceeded++
		c.mu.Unlock()
	})
	m.OnInvalidationFailed(func(err error) {
		c.mu.Lock()
		c.invFailed++
		c.lastInvFailedWith = err
		c.mu.Unlock()
	})
	return c
}

func (c *eventCounter) counts() (auth, inv, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authSucceeded, c.invSucceeded, c.invFailed
}
