package event

import (
	"sync"
	"testing"
	"time"
)

// Recorder stores published events in order. It satisfies the publisher side of
// Bus so components can be tested without subscribers.
type Recorder[T any] struct {
	mu     sync.Mutex
	events []T
}

func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{}
}

func (recorder *Recorder[T]) Publish(event T) {
	if recorder == nil {
		return
	}
	recorder.mu.Lock()
	recorder.events = append(recorder.events, event)
	recorder.mu.Unlock()
}

func (recorder *Recorder[T]) Events() []T {
	if recorder == nil {
		return nil
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	out := make([]T, len(recorder.events))
	copy(out, recorder.events)
	return out
}

func (recorder *Recorder[T]) Reset() {
	if recorder == nil {
		return
	}
	recorder.mu.Lock()
	recorder.events = nil
	recorder.mu.Unlock()
}

// ReceiveWithTimeout waits for a single event or fails the test.
func ReceiveWithTimeout[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return event
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event after %s", timeout)
	}
	var zero T
	return zero
}
