package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientauth/sessionkit/pkg/authenticator"
	"github.com/clientauth/sessionkit/pkg/logging"
)

func newTestRedisStore(t *testing.T, addr string) *Redis {
	t.Helper()

	s, err := NewRedis(RedisConfig{Addr: addr}, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedis_Roundtrip(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestRedisStore(t, mr.Addr())
	ctx := context.Background()

	initial, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Empty(t, initial)

	require.NoError(t, s.Persist(ctx, authenticator.Data{"theme": "dark"}))

	restored, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", restored["theme"])
}

func TestRedis_ForeignPersistNotifies(t *testing.T) {
	mr := miniredis.RunT(t)
	observer := newTestRedisStore(t, mr.Addr())
	writer := newTestRedisStore(t, mr.Addr())

	updated := make(chan authenticator.Data, 1)
	defer observer.OnUpdate(func(data authenticator.Data) {
		select {
		case updated <- data:
		default:
		}
	})()

	require.NoError(t, writer.Persist(context.Background(), authenticator.Data{"theme": "light"}))

	select {
	case data := <-updated:
		assert.Equal(t, "light", data["theme"])
	case <-time.After(3 * time.Second):
		t.Fatal("a write from another store was not reported")
	}
}

func TestRedis_OwnPersistDoesNotNotify(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestRedisStore(t, mr.Addr())

	updated := make(chan struct{}, 1)
	defer s.OnUpdate(func(authenticator.Data) {
		select {
		case updated <- struct{}{}:
		default:
		}
	})()

	require.NoError(t, s.Persist(context.Background(), authenticator.Data{"theme": "dark"}))

	select {
	case <-updated:
		t.Fatal("a store must not report its own write")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRedis_SharedStateAcrossStores(t *testing.T) {
	mr := miniredis.RunT(t)
	first := newTestRedisStore(t, mr.Addr())
	second := newTestRedisStore(t, mr.Addr())
	ctx := context.Background()

	require.NoError(t, first.Persist(ctx, authenticator.Data{"theme": "dark"}))

	restored, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", restored["theme"])
}

func TestRedis_ConnectFailure(t *testing.T) {
	_, err := NewRedis(RedisConfig{Addr: "127.0.0.1:1"}, logging.Nop())
	require.Error(t, err)
}

func TestRedis_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedis(RedisConfig{Addr: mr.Addr()}, logging.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Close())

	_, err = s.Restore(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Persist(context.Background(), authenticator.Data{}), ErrClosed)
	assert.ErrorIs(t, s.Close(), ErrClosed)
}
