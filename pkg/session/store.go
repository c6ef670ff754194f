package session

import (
	"context"

	"github.com/clientauth/sessionkit/pkg/authenticator"
)

// Store persists the session content and broadcasts externally observed
// changes. Implementations live in pkg/store; the manager only relies on
// this contract.
//
// OnUpdate must fire only for changes that did not originate from this
// process's own Persist calls, otherwise write-through persistence would
// echo back into reconciliation.
type Store interface {
	// Restore returns the last persisted session content. A store with
	// nothing persisted returns an empty (or nil) snapshot and no error.
	Restore(ctx context.Context) (authenticator.Data, error)

	// Persist writes the full session content.
	Persist(ctx context.Context, data authenticator.Data) error

	// OnUpdate subscribes to externally observed content changes. The
	// returned cancel function is idempotent.
	OnUpdate(fn func(authenticator.Data)) func()
}
