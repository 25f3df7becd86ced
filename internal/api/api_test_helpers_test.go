package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"radiohub/internal/app"
	"radiohub/internal/event"
	"radiohub/internal/logging"
	"radiohub/internal/metrics"
	"radiohub/internal/protocol"
	"radiohub/internal/schedule"
	"radiohub/internal/voice"
)

type testServer struct {
	server  *httptest.Server
	console *app.Console
	bus     *event.Bus[protocol.Message]
	metrics *metrics.Registry
	logger  *logging.Logger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	registry := &metrics.Registry{}
	logger := logging.NewLoggerWithOutput(nil, logging.LevelDebug, io.Discard)
	loop := schedule.NewLoop(nil)
	go loop.Run(ctx)
	bus := event.NewBus[protocol.Message](ctx, event.BusOptions{Name: "console", Registry: registry, Unbounded: true})

	console, err := app.Build(app.BuildOptions{
		Context:   ctx,
		Logger:    logger,
		Metrics:   registry,
		Scheduler: loop,
		Publisher: bus,
		Dice:      voice.DiceFunc(func() int { return 1 }),
		Threshold: 3,
	})
	if err != nil {
		t.Fatalf("build console: %v", err)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, RoutesOptions{
		Router:      console.Router,
		Bus:         bus,
		Metrics:     registry,
		Logger:      logger,
		NetworkName: "Test Net",
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testServer{server: server, console: console, bus: bus, metrics: registry, logger: logger}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	return s.dialPath(t, "/ws")
}

func (s *testServer) dialPath(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until one has the wanted type.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("set deadline: %v", err)
		}
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for %s: %v", eventType, err)
		}
		if frame["type"] == eventType {
			return frame
		}
	}
}

// readRosterWith reads roster updates until one lists rid.
func readRosterWith(t *testing.T, conn *websocket.Conn, rid string) {
	t.Helper()
	for {
		frame := readUntil(t, conn, "usersUpdate")
		roster, _ := frame["data"].(map[string]any)
		for _, entry := range roster {
			identity, _ := entry.(map[string]any)
			if identity["username"] == rid {
				return
			}
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// waitForSubscribers blocks until the bus has n subscribers, so broadcasts that
// follow are not missed.
func waitForSubscribers(t *testing.T, bus *event.Bus[protocol.Message], n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", n, bus.SubscriberCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
