// Package events provides a minimal typed publish/subscribe primitive.
//
// A Signal holds an explicit subscriber list. Subscribing returns a cancel
// function; cancelling is idempotent. Publishing snapshots the subscriber
// list first, so subscribers may unsubscribe (or resubscribe) from within
// their own callback without deadlocking.
package events

import "sync"

// Signal is a typed observer list. The zero value is ready to use.
// All methods are safe for concurrent use.
type Signal[T any] struct {
	mu   sync.Mutex
	subs map[int]func(T)
	next int
}

// Subscribe registers fn and returns a cancel function that removes it.
// The cancel function is idempotent.
func (s *Signal[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]func(T))
	}

	id := s.next
	s.next++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Publish invokes every current subscriber with v, synchronously, in
// unspecified order. Subscribers added during delivery do not receive v.
func (s *Signal[T]) Publish(v T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of current subscribers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
