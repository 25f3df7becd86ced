package event

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"radiohub/internal/logging"
	"radiohub/internal/metrics"
	"radiohub/internal/protocol"
)

type namedEvent string

func (e namedEvent) Type() string { return string(e) }

func TestBusSubscribePublish(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)

	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(42)
	if got := ReceiveWithTimeout(t, ch, 100*time.Millisecond); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after cancel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBusFilteredSubscriberSkipsEvents(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)

	even, cancel := bus.SubscribeFiltered(func(value int) bool { return value%2 == 0 })
	defer cancel()

	bus.Publish(1)
	bus.Publish(2)

	if got := ReceiveWithTimeout(t, even, 100*time.Millisecond); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	select {
	case got := <-even:
		t.Fatalf("unexpected event %d", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBusCloseClosesSubscribers(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	ch, _ := bus.Subscribe()

	bus.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after bus close")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
	if bus.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers, got %d", bus.SubscriberCount())
	}
}

func TestBusContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus[int](ctx, BusOptions{})
	ch, _ := bus.Subscribe()

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("bus did not close on context cancel")
	}
}

func TestBusDropOnFull(t *testing.T) {
	registry := &metrics.Registry{}
	bus := NewBus[namedEvent](context.Background(), BusOptions{
		Name:                 "drop",
		SubscriberBufferSize: 1,
		Registry:             registry,
	})
	t.Cleanup(bus.Close)

	ch, _ := bus.Subscribe()

	bus.Publish("first")

	done := make(chan struct{})
	go func() {
		bus.Publish("first")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publish blocked on a full subscriber")
	}

	if got := ReceiveWithTimeout(t, ch, 100*time.Millisecond); got != "first" {
		t.Fatalf("expected first event, got %q", got)
	}

	var output bytes.Buffer
	if err := registry.WritePrometheus(&output); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	body := output.String()
	if !strings.Contains(body, `radiohub_events_published_total{bus="drop",type="first"} 2`) {
		t.Fatalf("expected published metrics, got %q", body)
	}
	if !strings.Contains(body, `radiohub_events_dropped_total{bus="drop",type="first"} 1`) {
		t.Fatalf("expected dropped metrics, got %q", body)
	}
}

func TestBusMaxSubscribers(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{MaxSubscribers: 1})
	t.Cleanup(bus.Close)

	_, cancel := bus.Subscribe()
	defer cancel()
	second, _ := bus.Subscribe()

	if _, ok := <-second; ok {
		t.Fatal("expected rejected subscriber to receive a closed channel")
	}
}

func TestBusTraceEventsLogsPublishes(t *testing.T) {
	var output bytes.Buffer
	logger := logging.NewLoggerWithOutput(nil, logging.LevelDebug, &output)
	bus := NewBus[namedEvent](context.Background(), BusOptions{
		Name:        "trace",
		Registry:    &metrics.Registry{},
		Logger:      logger,
		TraceEvents: true,
	})
	t.Cleanup(bus.Close)

	bus.Publish(namedEvent("VOICE_CHANNEL_GRANT"))

	if !strings.Contains(output.String(), `msg="event published"`) || !strings.Contains(output.String(), `type="VOICE_CHANNEL_GRANT"`) {
		t.Fatalf("expected trace line, got %q", output.String())
	}
}

func TestUnboundedBusKeepsControlEventsBehindAudioBacklog(t *testing.T) {
	registry := &metrics.Registry{}
	bus := NewBus[protocol.Message](context.Background(), BusOptions{
		Name:                 "console",
		SubscriberBufferSize: 256,
		Registry:             registry,
		Unbounded:            true,
	})
	t.Cleanup(bus.Close)

	ch, cancel := bus.Subscribe()
	defer cancel()

	for i := 0; i < 256; i++ {
		bus.Publish(protocol.Message{Event: protocol.OutAudio, Data: i})
	}
	bus.Publish(protocol.Message{Event: protocol.OutVoiceChannelGrant, Data: "grant"})
	bus.Publish(protocol.Message{Event: protocol.OutVoiceChannelRelease, Data: "release"})

	for i := 0; i < 256; i++ {
		message := ReceiveWithTimeout(t, ch, time.Second)
		if message.Event != protocol.OutAudio || message.Data != i {
			t.Fatalf("frame %d: unexpected %#v", i, message)
		}
	}
	if grant := ReceiveWithTimeout(t, ch, time.Second); grant.Event != protocol.OutVoiceChannelGrant {
		t.Fatalf("expected grant after the backlog, got %#v", grant)
	}
	if release := ReceiveWithTimeout(t, ch, time.Second); release.Event != protocol.OutVoiceChannelRelease {
		t.Fatalf("expected release after the grant, got %#v", release)
	}

	var out bytes.Buffer
	if err := registry.WritePrometheus(&out); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	if strings.Contains(out.String(), "radiohub_events_dropped_total") {
		t.Fatalf("expected no drops, got %q", out.String())
	}
}

func TestUnboundedBusCancelAndCloseCloseChannels(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{SubscriberBufferSize: 1, Unbounded: true})

	first, cancelFirst := bus.Subscribe()
	second, _ := bus.Subscribe()
	for i := 0; i < 10; i++ {
		bus.Publish(i)
	}

	cancelFirst()
	waitClosed(t, first)

	bus.Close()
	waitClosed(t, second)
	bus.Publish(99)
}

func waitClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("expected channel to close")
		}
	}
}
