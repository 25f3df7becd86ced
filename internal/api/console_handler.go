package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"radiohub/internal/app"
	"radiohub/internal/event"
	"radiohub/internal/logging"
	"radiohub/internal/protocol"
)

// ConsoleHandler serves the console event channel. Each connection gets a
// uuid, a filtered bus subscription for its outbound events, and a read loop
// feeding the router.
type ConsoleHandler struct {
	Router         *app.Router
	Bus            *event.Bus[protocol.Message]
	AllowedOrigins []string
	Logger         *logging.Logger
	// NewID defaults to uuid.NewString.
	NewID func() string
}

func (h *ConsoleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Router == nil || h.Bus == nil {
		logWSError(h.Logger, r, wsError{Status: http.StatusServiceUnavailable, Message: "console unavailable"})
		http.Error(w, "console unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgradeWebSocket(w, r, h.AllowedOrigins)
	if err != nil {
		logWSError(h.Logger, r, wsError{
			Status:  http.StatusBadRequest,
			Message: "websocket upgrade failed",
			Err:     err,
		})
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxFrameBytes)

	id := h.newID()
	h.Router.Connect(id)
	defer h.Router.Disconnect(id)

	output, cancel := h.Bus.SubscribeFiltered(func(message protocol.Message) bool {
		return message.Target == "" || message.Target == id
	})
	defer cancel()

	peer := newConsolePeer(conn, id, output, h.Logger)
	peer.keepAlive(wsPongWait)
	peer.start()
	defer peer.Stop()

	if h.Logger != nil {
		h.Logger.Debug("console connected", map[string]string{
			"connection":  id,
			"remote_addr": r.RemoteAddr,
		})
	}

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.Router.Handle(id, msg)
	}
}

func (h *ConsoleHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}
