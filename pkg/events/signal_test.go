package events

import (
	"sync"
	"testing"
)

func TestSignal_PublishReachesAllSubscribers(t *testing.T) {
	var s Signal[int]

	var got []int
	s.Subscribe(func(v int) { got = append(got, v) })
	s.Subscribe(func(v int) { got = append(got, v*10) })

	s.Publish(3)

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
}

func TestSignal_CancelRemovesSubscriber(t *testing.T) {
	var s Signal[string]

	calls := 0
	cancel := s.Subscribe(func(string) { calls++ })

	s.Publish("a")
	cancel()
	s.Publish("b")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestSignal_CancelIsIdempotent(t *testing.T) {
	var s Signal[int]

	cancel1 := s.Subscribe(func(int) {})
	cancel2 := s.Subscribe(func(int) {})

	cancel1()
	cancel1()

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	cancel2()
}

func TestSignal_UnsubscribeDuringPublish(t *testing.T) {
	var s Signal[int]

	var cancel func()
	calls := 0
	cancel = s.Subscribe(func(int) {
		calls++
		cancel()
	})

	s.Publish(1)
	s.Publish(2)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSignal_ConcurrentUse(t *testing.T) {
	var s Signal[int]

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cancel := s.Subscribe(func(int) {})
			s.Publish(1)
			cancel()
		}()
	}
	wg.Wait()

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}
