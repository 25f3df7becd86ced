package schedule

import (
	"context"
	"errors"
	"time"
)

var ErrStopped = errors.New("scheduler stopped")

// Scheduler runs tasks on the serialized stream.
type Scheduler interface {
	// Do queues task to run after every task queued before it.
	Do(task func())
	// After queues task once delay has elapsed. Re-reading mutable state is the
	// task's job; nothing is captured on its behalf.
	After(delay time.Duration, task func())
}

// Sync runs task on the stream and waits for it to finish.
func Sync(ctx context.Context, scheduler Scheduler, task func()) error {
	if scheduler == nil {
		return ErrStopped
	}
	done := make(chan struct{})
	scheduler.Do(func() {
		defer close(done)
		task()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
