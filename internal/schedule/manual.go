package schedule

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler for tests. Do runs the task immediately on
// the caller's goroutine; After holds the task until Advance moves the clock past
// its deadline.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []manualTask
}

type manualTask struct {
	due  time.Duration
	seq  int
	task func()
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Do(task func()) {
	if task != nil {
		task()
	}
}

func (m *Manual) After(delay time.Duration, task func()) {
	if task == nil {
		return
	}
	m.mu.Lock()
	m.seq++
	m.pending = append(m.pending, manualTask{due: m.now + delay, seq: m.seq, task: task})
	m.mu.Unlock()
}

// Advance moves the clock forward and runs every task that became due, including
// tasks scheduled by those tasks, in deadline order.
func (m *Manual) Advance(delta time.Duration) {
	m.mu.Lock()
	target := m.now + delta
	m.mu.Unlock()

	for {
		m.mu.Lock()
		sort.Slice(m.pending, func(i, j int) bool {
			if m.pending[i].due == m.pending[j].due {
				return m.pending[i].seq < m.pending[j].seq
			}
			return m.pending[i].due < m.pending[j].due
		})
		if len(m.pending) == 0 || m.pending[0].due > target {
			m.now = target
			m.mu.Unlock()
			return
		}
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.now = next.due
		m.mu.Unlock()

		next.task()
	}
}

// Pending reports how many delayed tasks have not fired yet.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
