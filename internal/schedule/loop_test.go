package schedule

import (
	"context"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	loop := NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop
}

func TestLoopRunsTasksInSubmissionOrder(t *testing.T) {
	loop := startLoop(t)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 100; i++ {
		value := i
		loop.Do(func() {
			mu.Lock()
			order = append(order, value)
			mu.Unlock()
		})
	}
	if err := Sync(context.Background(), loop, func() {}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 100 {
		t.Fatalf("expected 100 tasks, got %d", len(order))
	}
	for i, value := range order {
		if value != i {
			t.Fatalf("task %d ran at position %d", value, i)
		}
	}
}

func TestLoopTaskCanSubmitTask(t *testing.T) {
	loop := startLoop(t)

	done := make(chan struct{})
	loop.Do(func() {
		loop.Do(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested task did not run")
	}
}

func TestLoopAfterRunsOnLoop(t *testing.T) {
	loop := startLoop(t)

	fired := make(chan time.Time, 1)
	start := time.Now()
	loop.After(20*time.Millisecond, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		if at.Sub(start) < 20*time.Millisecond {
			t.Fatalf("task fired early after %s", at.Sub(start))
		}
	case <-time.After(time.Second):
		t.Fatal("delayed task did not fire")
	}
}

func TestLoopSurvivesPanickingTask(t *testing.T) {
	loop := startLoop(t)

	loop.Do(func() { panic("boom") })
	if err := Sync(context.Background(), loop, func() {}); err != nil {
		t.Fatalf("loop stopped after panic: %v", err)
	}
}

func TestSyncHonoursContext(t *testing.T) {
	loop := NewLoop(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := Sync(ctx, loop, func() {}); err == nil {
		t.Fatal("expected context error when loop is not running")
	}
}

func TestManualAdvanceFiresInDeadlineOrder(t *testing.T) {
	manual := NewManual()
	var order []string
	manual.After(1500*time.Millisecond, func() { order = append(order, "slow") })
	manual.After(500*time.Millisecond, func() {
		order = append(order, "fast")
		manual.After(500*time.Millisecond, func() { order = append(order, "chained") })
	})

	manual.Advance(499 * time.Millisecond)
	if len(order) != 0 {
		t.Fatalf("expected nothing yet, got %v", order)
	}
	manual.Advance(time.Second)
	if len(order) != 2 || order[0] != "fast" || order[1] != "chained" {
		t.Fatalf("unexpected order %v", order)
	}
	if manual.Pending() != 1 {
		t.Fatalf("expected one pending task, got %d", manual.Pending())
	}
	manual.Advance(time.Second)
	if len(order) != 3 || order[2] != "slow" {
		t.Fatalf("unexpected order %v", order)
	}
}
