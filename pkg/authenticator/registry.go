package authenticator

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps strategy names to Authenticator instances. It replaces any
// ambient service lookup: the session manager is handed a Registry at
// construction and resolves strategies through it only.
type Registry struct {
	mu             sync.RWMutex
	authenticators map[string]Authenticator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		authenticators: make(map[string]Authenticator),
	}
}

// Register adds a strategy under the given name, replacing any previous
// registration for that name.
func (r *Registry) Register(name string, a Authenticator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authenticators[name] = a
}

// Get resolves a strategy by name. Returns ErrNoAuthenticator when the name
// is unknown.
func (r *Registry) Get(name string) (Authenticator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.authenticators[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNoAuthenticator, name)
	}
	return a, nil
}

// Names returns the registered strategy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.authenticators))
	for name := range r.authenticators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
