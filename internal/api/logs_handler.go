package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"radiohub/internal/logging"
)

// LogsHandler streams log entries over a websocket: the buffered entries
// first, then live ones. ?level= sets the minimum level and a client frame
// {"level":"warning"} changes it; an unknown level shows everything.
type LogsHandler struct {
	Logger         *logging.Logger
	AllowedOrigins []string
}

type logFilterMessage struct {
	Level string `json:"level"`
}

type levelFilter struct {
	mu    sync.RWMutex
	level logging.Level
}

func (f *levelFilter) allows(entry logging.LogEntry) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.level == "" || entry.Level.AtLeast(f.level)
}

func (f *levelFilter) set(raw string) {
	level, ok := logging.ParseLevel(raw)
	if !ok {
		level = ""
	}
	f.mu.Lock()
	f.level = level
	f.mu.Unlock()
}

func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Logger == nil {
		logWSError(h.Logger, r, wsError{Status: http.StatusServiceUnavailable, Message: "log stream unavailable"})
		http.Error(w, "log stream unavailable", http.StatusServiceUnavailable)
		return
	}

	filter := &levelFilter{}
	if raw := r.URL.Query().Get("level"); raw != "" {
		filter.set(raw)
	}

	conn, err := upgradeWebSocket(w, r, h.AllowedOrigins)
	if err != nil {
		logWSError(h.Logger, r, wsError{Status: http.StatusBadRequest, Message: "websocket upgrade failed", Err: err})
		return
	}
	defer conn.Close()

	// Subscribe before taking the snapshot so no entry falls in between.
	live, cancel := h.Logger.Subscribe()
	defer cancel()
	snapshot := h.Logger.Buffer().List()

	stop := make(chan struct{})
	defer close(stop)
	go h.pump(conn, filter, snapshot, live, stop)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var payload logFilterMessage
		if err := json.Unmarshal(msg, &payload); err != nil {
			continue
		}
		filter.set(payload.Level)
	}
}

func (h *LogsHandler) pump(conn *websocket.Conn, filter *levelFilter, snapshot []logging.LogEntry, live <-chan logging.LogEntry, stop <-chan struct{}) {
	write := func(entry logging.LogEntry) bool {
		if !filter.allows(entry) {
			return true
		}
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return false
		}
		return conn.WriteJSON(entry) == nil
	}

	for _, entry := range snapshot {
		if !write(entry) {
			return
		}
	}
	for {
		select {
		case entry, ok := <-live:
			if !ok || !write(entry) {
				return
			}
		case <-stop:
			return
		}
	}
}
