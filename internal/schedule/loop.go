package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"radiohub/internal/logging"
)

// Loop is the production Scheduler. The queue is unbounded so a task may submit
// further tasks without deadlocking the loop.
type Loop struct {
	logger *logging.Logger

	mu      sync.Mutex
	tasks   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func NewLoop(logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (l *Loop) Do(task func()) {
	if l == nil || task == nil {
		return
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) After(delay time.Duration, task func()) {
	if l == nil || task == nil {
		return
	}
	time.AfterFunc(delay, func() {
		l.Do(task)
	})
}

// Run processes tasks until ctx is cancelled. Tasks still queued at that point are
// discarded.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		for _, task := range l.drain() {
			l.run(task)
		}
		select {
		case <-l.wake:
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.tasks = nil
			l.mu.Unlock()
			return
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) drain() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := l.tasks
	l.tasks = nil
	return tasks
}

func (l *Loop) run(task func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			l.logger.Error("scheduled task panicked", map[string]string{
				"panic": fmt.Sprint(recovered),
				"stack": string(debug.Stack()),
			})
		}
	}()
	task()
}
