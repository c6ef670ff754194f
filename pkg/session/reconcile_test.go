package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientauth/sessionkit/pkg/authenticator"
)

func TestStoreUpdate_AuthenticatesWhileIdle(t *testing.T) {
	store := newFakeStore()
	fake := newFakeAuthenticator()
	m := newTestManager(t, store, map[string]authenticator.Authenticator{"x": fake})
	events := recordEvents(m)

	store.notify(authenticator.Data{
		AuthenticatedKey: authenticator.Data{
			authenticator.AuthenticatorKey: "x",
			"access_token":                 "AT2",
		},
	})

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "x", m.AuthenticatorID())
	assert.Equal(t, "AT2", AuthenticatedData(m.Data())["access_token"])

	authSucceeded, _, _ := events.counts()
	assert.Equal(t, 1, authSucceeded, "externally driven transitions emit authenticationSucceeded")
}

func TestStoreUpdate_DroppedWhileBusy(t *testing.T) {
	store := newFakeStore()
	local := newFakeAuthenticator()
	external := newFakeAuthenticator()

	started := make(chan struct{})
	release := make(chan struct{})
	local.authenticateFn = func(ctx context.Context, credentials interface{}) (authenticator.Data, error) {
		close(started)
		<-release
		return authenticator.Data{"access_token": "LOCAL"}, nil
	}

	m := newTestManager(t, store, map[string]authenticator.Authenticator{
		"local": local,
		"x":     external,
	})

	done := make(chan error, 1)
	go func() {
		done <- m.Authenticate(context.Background(), "local", nil)
	}()
	<-started

	// Arrives mid-authenticate: must be dropped, the local operation is
	// authoritative.
	store.notify(authenticator.Data{
		AuthenticatedKey: authenticator.Data{
			authenticator.AuthenticatorKey: "x",
			"access_token":                 "EXTERNAL",
		},
	})

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 0, external.restoreCount(), "dropped notification must not reach the authenticator")
	assert.Equal(t, "local", m.AuthenticatorID())
	assert.Equal(t, "LOCAL", AuthenticatedData(m.Data())["access_token"])
}

func TestStoreUpdate_InvalidPayloadClearsWithEvent(t *testing.T) {
	store := newFakeStore()
	fake := newFakeAuthenticator()
	m := newTestManager(t, store, map[string]authenticator.Authenticator{"fake": fake})
	require.NoError(t, m.Authenticate(context.Background(), "fake", nil))
	events := recordEvents(m)

	// Another context logged out: the pushed content has no authenticator.
	store.notify(authenticator.Data{AuthenticatedKey: authenticator.Data{}})

	assert.False(t, m.IsAuthenticated())
	_, invSucceeded, _ := events.counts()
	assert.Equal(t, 1, invSucceeded, "an externally driven logout emits invalidationSucceeded")
}

func TestStoreUpdate_NoEventWhenAlreadyUnauthenticated(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, store, nil)
	events := recordEvents(m)

	store.notify(authenticator.Data{AuthenticatedKey: authenticator.Data{}})

	_, invSucceeded, _ := events.counts()
	assert.Zero(t, invSucceeded, "clearing an already unauthenticated session is not a transition")
}

func TestAuthenticatorDataUpdated_ReplacesContentSilently(t *testing.T) {
	store := newFakeStore()
	fake := newFakeAuthenticator()
	m := newTestManager(t, store, map[string]authenticator.Authenticator{"fake": fake})
	require.NoError(t, m.Authenticate(context.Background(), "fake", nil))
	events := recordEvents(m)

	fake.dataUpdated.Publish(authenticator.Data{"access_token": "REFRESHED"})

	assert.True(t, m.IsAuthenticated())
	refreshed := AuthenticatedData(m.Data())
	assert.Equal(t, "REFRESHED", refreshed["access_token"])
	assert.Equal(t, "fake", refreshed[authenticator.AuthenticatorKey], "the owning strategy name is preserved")
	assert.Equal(t, "REFRESHED", AuthenticatedData(store.persisted())["access_token"], "refreshed content is persisted")

	authSucceeded, invSucceeded, _ := events.counts()
	assert.Zero(t, authSucceeded, "a same-state refresh emits nothing")
	assert.Zero(t, invSucceeded)
}

func TestAuthenticatorInvalidated_ClearsSession(t *testing.T) {
	store := newFakeStore()
	fake := newFakeAuthenticator()
	m := newTestManager(t, store, map[string]authenticator.Authenticator{"fake": fake})
	require.NoError(t, m.Authenticate(context.Background(), "fake", nil))
	events := recordEvents(m)

	fake.invalidated.Publish(errFakeRejected)

	assert.False(t, m.IsAuthenticated())
	_, invSucceeded, _ := events.counts()
	assert.Equal(t, 1, invSucceeded)
}

func TestRebind_TearsDownPriorAuthenticatorBinding(t *testing.T) {
	store := newFakeStore()
	first := newFakeAuthenticator()
	second := newFakeAuthenticator()
	first.authenticateFn = func(ctx context.Context, credentials interface{}) (authenticator.Data, error) {
		return authenticator.Data{"access_token": "FIRST"}, nil
	}
	second.authenticateFn = func(ctx context.Context, credentials interface{}) (authenticator.Data, error) {
		return authenticator.Data{"access_token": "SECOND"}, nil
	}
	m := newTestManager(t, store, map[string]authenticator.Authenticator{
		"first":  first,
		"second": second,
	})

	require.NoError(t, m.Authenticate(context.Background(), "first", nil))
	require.NoError(t, m.Authenticate(context.Background(), "second", nil))

	// The first strategy is no longer bound; its events must not leak in.
	first.dataUpdated.Publish(authenticator.Data{"access_token": "STALE"})

	assert.Equal(t, "SECOND", AuthenticatedData(m.Data())["access_token"])
	assert.Equal(t, "second", m.AuthenticatorID())
}

func TestClose_UnsubscribesFromStore(t *testing.T) {
	store := newFakeStore()
	fake := newFakeAuthenticator()
	registry := authenticator.NewRegistry()
	registry.Register("x", fake)
	m := NewManager(registry, store, nil)

	m.Close()
	store.notify(authenticator.Data{
		AuthenticatedKey: authenticator.Data{
			authenticator.AuthenticatorKey: "x",
			"access_token":                 "AT2",
		},
	})

	assert.False(t, m.IsAuthenticated())
	assert.Equal(t, 0, fake.restoreCount())
}
