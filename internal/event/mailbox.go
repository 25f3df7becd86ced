package event

import "sync"

// mailbox is an unbounded FIFO drained into out by run. After close, queued
// items are discarded and out is closed.
type mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	wake   chan struct{}
	done   chan struct{}
	out    chan T
}

func newMailbox[T any](out chan T) *mailbox[T] {
	return &mailbox[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  out,
	}
}

func (m *mailbox[T]) push(item T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, item)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

func (m *mailbox[T]) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.items = nil
	close(m.done)
}

func (m *mailbox[T]) run() {
	defer close(m.out)
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		if len(m.items) == 0 {
			m.mu.Unlock()
			select {
			case <-m.wake:
				continue
			case <-m.done:
				return
			}
		}
		item := m.items[0]
		var zero T
		m.items[0] = zero
		m.items = m.items[1:]
		m.mu.Unlock()

		select {
		case m.out <- item:
		case <-m.done:
			return
		}
	}
}
