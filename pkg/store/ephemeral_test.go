package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientauth/sessionkit/pkg/authenticator"
)

func TestEphemeral_Roundtrip(t *testing.T) {
	s := NewEphemeral()
	ctx := context.Background()

	initial, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Empty(t, initial)

	require.NoError(t, s.Persist(ctx, authenticator.Data{"theme": "dark"}))

	restored, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", restored["theme"])
}

func TestEphemeral_IsolatesCallersFromItsCopy(t *testing.T) {
	s := NewEphemeral()
	ctx := context.Background()

	original := authenticator.Data{"theme": "dark"}
	require.NoError(t, s.Persist(ctx, original))
	original["theme"] = "light"

	restored, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", restored["theme"], "persisted content must not alias the caller's map")

	restored["theme"] = "light"
	again, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", again["theme"], "restored content must not alias the store's map")
}

func TestEphemeral_OnUpdateCancelIsNoOp(t *testing.T) {
	s := NewEphemeral()
	cancel := s.OnUpdate(func(authenticator.Data) {
		t.Fatal("ephemeral store must never notify")
	})
	cancel()
	require.NoError(t, s.Persist(context.Background(), authenticator.Data{"k": "v"}))
	require.NoError(t, s.Close())
}
