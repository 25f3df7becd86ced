package logging

import "sync"

const defaultStreamBuffer = 100

// Stream fans log entries out to live subscribers. Slow subscribers miss entries.
type Stream struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan LogEntry
	closed bool
}

func NewStream() *Stream {
	return &Stream{subs: make(map[uint64]chan LogEntry)}
}

func (s *Stream) Subscribe(buffer int) (<-chan LogEntry, func()) {
	if s == nil {
		return nil, func() {}
	}
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		ch := make(chan LogEntry)
		close(ch)
		return ch, func() {}
	}
	s.nextID++
	id := s.nextID
	ch := make(chan LogEntry, buffer)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
	}
}

func (s *Stream) Broadcast(entry LogEntry) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ch := range s.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

func (s *Stream) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
