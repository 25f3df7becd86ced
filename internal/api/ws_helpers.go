package api

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"radiohub/internal/logging"
	"radiohub/internal/protocol"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
	wsWriteTimeout    = 10 * time.Second
	// A console that misses pongs for this long is dropped.
	wsPongWait     = 60 * time.Second
	wsPingInterval = (wsPongWait * 9) / 10
)

// Audio frames arrive as base64 data URLs and can be large.
const wsMaxFrameBytes = 8 << 20

type wsError struct {
	Status    int
	CloseCode int
	Message   string
	Err       error
}

// consolePeer owns the write side of one console connection. All writes,
// pings included, happen on the pump goroutine.
type consolePeer struct {
	conn         *websocket.Conn
	id           string
	outbound     <-chan protocol.Message
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *logging.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

func newConsolePeer(conn *websocket.Conn, id string, outbound <-chan protocol.Message, logger *logging.Logger) *consolePeer {
	return &consolePeer{
		conn:         conn,
		id:           id,
		outbound:     outbound,
		writeTimeout: wsWriteTimeout,
		pingInterval: wsPingInterval,
		logger:       logger,
		stop:         make(chan struct{}),
	}
}

// keepAlive arms the read deadline and extends it on every pong.
func (p *consolePeer) keepAlive(pongWait time.Duration) {
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (p *consolePeer) start() {
	go p.pump()
}

func (p *consolePeer) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

func (p *consolePeer) pump() {
	ticker := time.NewTicker(p.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-p.outbound:
			if !ok {
				p.writeClose(websocket.CloseGoingAway, "hub closed")
				return
			}
			if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
				return
			}
			if err := p.conn.WriteJSON(message); err != nil {
				p.debug("console write failed", err)
				return
			}
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(p.writeTimeout)); err != nil {
				p.debug("console ping failed", err)
				return
			}
		case <-p.stop:
			return
		}
	}
}

func (p *consolePeer) writeClose(code int, text string) {
	_ = p.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(p.writeTimeout))
}

func (p *consolePeer) debug(message string, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Debug(message, map[string]string{
		"connection": p.id,
		"error":      err.Error(),
	})
}

func upgradeWebSocket(w http.ResponseWriter, r *http.Request, allowedOrigins []string) (*websocket.Conn, error) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, allowedOrigins)
		},
	}
	return upgrader.Upgrade(w, r, nil)
}

func logWSError(logger *logging.Logger, r *http.Request, wsErr wsError) {
	if logger == nil || r == nil {
		return
	}
	closeCode := wsErr.CloseCode
	if closeCode == 0 {
		closeCode = closeCodeForStatus(wsErr.Status)
	}

	fields := map[string]string{
		"path":       r.URL.Path,
		"status":     strconv.Itoa(wsErr.Status),
		"close_code": strconv.Itoa(closeCode),
		"message":    wsErr.Message,
	}
	if r.RemoteAddr != "" {
		fields["remote_addr"] = r.RemoteAddr
	}
	if wsErr.Err != nil {
		fields["error"] = wsErr.Err.Error()
	}
	if wsErr.Status >= http.StatusInternalServerError {
		logger.Error("console websocket error", fields)
		return
	}
	logger.Warn("console websocket error", fields)
}

func closeCodeForStatus(status int) int {
	switch {
	case status == http.StatusBadRequest:
		return websocket.CloseProtocolError
	case status == http.StatusServiceUnavailable:
		return websocket.CloseTryAgainLater
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return websocket.ClosePolicyViolation
	default:
		return websocket.CloseInternalServerErr
	}
}

// isOriginAllowed accepts requests without an Origin header and same-host
// origins. A non-empty allow list replaces the same-host rule.
func isOriginAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	if len(allowed) == 0 {
		return strings.EqualFold(parsed.Hostname(), hostOnly(r.Host))
	}
	for _, entry := range allowed {
		if strings.EqualFold(origin, entry) || strings.EqualFold(parsed.Hostname(), entry) {
			return true
		}
	}
	return false
}

func hostOnly(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.Trim(host, "[]")
	}
	return strings.Trim(hostport, "[]")
}
