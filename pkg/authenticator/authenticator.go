// Package authenticator defines the strategy contract for credential
// exchange. A strategy knows how to establish a session payload from
// credentials, re-validate a persisted payload, and tear a payload down.
// Strategies are resolved by name through a Registry.
package authenticator

import (
	"context"
	"errors"
)

var (
	// ErrNoAuthenticator is returned when a session names a strategy that is
	// not registered. This indicates a configuration error, not a runtime
	// condition.
	ErrNoAuthenticator = errors.New("authenticator: no authenticator registered")
)

// AuthenticatorKey is the reserved key inside a session payload naming the
// strategy that issued it.
const AuthenticatorKey = "authenticator"

// Data is an authenticator-issued session payload, e.g. tokens and expiry.
// It is replaced wholesale on every lifecycle transition, never mutated in
// place.
type Data map[string]interface{}

// Clone returns a deep copy of d. Nested maps are copied; other values are
// shared.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		switch nested := v.(type) {
		case Data:
			out[k] = nested.Clone()
		case map[string]interface{}:
			out[k] = Data(nested).Clone()
		default:
			out[k] = v
		}
	}
	return out
}

// Authenticator is a credential-exchange strategy.
//
// Authenticate exchanges credentials for a session payload. The credentials
// value is strategy-specific; each implementation documents the type it
// accepts.
//
// Restore re-validates a previously persisted payload, returning the payload
// to install (possibly refreshed). An error means the payload is no longer
// usable and the session must be treated as unauthenticated.
//
// Invalidate tears down whatever the payload represents server-side. An
// error keeps the session authenticated.
type Authenticator interface {
	Authenticate(ctx context.Context, credentials interface{}) (Data, error)
	Restore(ctx context.Context, data Data) (Data, error)
	Invalidate(ctx context.Context, data Data) error
}

// Notifier is implemented by strategies that autonomously change or revoke
// their session payload after authentication, e.g. by refreshing an access
// token on a timer. Subscriptions return idempotent cancel functions.
type Notifier interface {
	// OnDataUpdated fires with the full replacement payload whenever the
	// strategy refreshes it.
	OnDataUpdated(fn func(Data)) func()

	// OnInvalidated fires when the strategy decides its payload is no
	// longer valid.
	OnInvalidated(fn func(error)) func()
}
