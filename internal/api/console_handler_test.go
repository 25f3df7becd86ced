package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestConsoleRosterReachesEveryClient(t *testing.T) {
	server := newTestServer(t)
	first := server.dial(t)
	second := server.dial(t)
	waitForSubscribers(t, server.bus, 2)

	send(t, first, `{"type":"userInformation","data":{"username":"100","channel":"A","mute":false,"online":true}}`)

	for _, conn := range []*websocket.Conn{first, second} {
		frame := readUntil(t, conn, "usersUpdate")
		roster, ok := frame["data"].(map[string]any)
		if !ok || len(roster) != 2 {
			t.Fatalf("expected roster with two sessions, got %#v", frame["data"])
		}
	}
}

func TestConsoleAudioOnlyReachesChannelPeers(t *testing.T) {
	server := newTestServer(t)
	talker := server.dial(t)
	listener := server.dial(t)
	other := server.dial(t)
	waitForSubscribers(t, server.bus, 3)

	send(t, talker, `{"type":"userInformation","data":{"username":"1","channel":"A","online":true}}`)
	readRosterWith(t, talker, "1")
	send(t, listener, `{"type":"userInformation","data":{"username":"2","channel":"A","online":true}}`)
	readRosterWith(t, listener, "2")
	send(t, other, `{"type":"userInformation","data":{"username":"3","channel":"B","online":true}}`)
	readRosterWith(t, other, "3")
	send(t, talker, `{"type":"voice","data":"data:audio/webm;base64,QUJD"}`)
	send(t, talker, `{"type":"AFFILIATION_LIST_REQUEST"}`)

	frame := readUntil(t, listener, "send")
	data := frame["data"].(map[string]any)
	if data["newData"] != "data:audio/wav;base64,QUJD" || data["rid"] != "1" || data["channel"] != "A" {
		t.Fatalf("unexpected audio frame %#v", data)
	}

	// The talker's list request is dispatched after its audio, so reaching the
	// update on "other" without a "send" proves nothing leaked there.
	if err := other.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	for {
		var next map[string]any
		if err := other.ReadJSON(&next); err != nil {
			t.Fatalf("read: %v", err)
		}
		if next["type"] == "send" {
			t.Fatal("audio leaked to another channel")
		}
		if next["type"] == "AFFILIATION_LOOKUP_UPDATE" {
			break
		}
	}
}

func TestConsoleVoiceRequestRoundTrip(t *testing.T) {
	server := newTestServer(t)
	conn := server.dial(t)
	waitForSubscribers(t, server.bus, 1)

	send(t, conn, `{"type":"VOICE_CHANNEL_REQUEST","data":{"rid":"12345","channel":"A"}}`)

	request := readUntil(t, conn, "VOICE_CHANNEL_REQUEST")
	if request["data"].(map[string]any)["stamp"] == "" {
		t.Fatal("expected stamped request")
	}
	grant := readUntil(t, conn, "VOICE_CHANNEL_GRANT")
	if grant["data"].(map[string]any)["rid"] != "12345" {
		t.Fatalf("unexpected grant %#v", grant)
	}
}

func TestConsoleDisconnectRemovesSession(t *testing.T) {
	server := newTestServer(t)
	conn := server.dial(t)
	waitForSubscribers(t, server.bus, 1)
	send(t, conn, `{"type":"userInformation","data":{"username":"9","channel":"A","online":true}}`)
	readUntil(t, conn, "usersUpdate")

	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		sessions, err := server.console.Router.Sessions(context.Background())
		if err != nil {
			t.Fatalf("sessions: %v", err)
		}
		if len(sessions) == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("session not removed: %#v", sessions)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConsoleRejectsForeignOrigin(t *testing.T) {
	server := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(server.server.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Origin", "https://evil.example")

	_, response, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if response == nil || response.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %#v", response)
	}
}

func TestConsoleUnavailableWithoutRouter(t *testing.T) {
	handler := &ConsoleHandler{}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", recorder.Code)
	}
}

func TestIsOriginAllowed(t *testing.T) {
	cases := []struct {
		origin  string
		host    string
		allowed []string
		want    bool
	}{
		{origin: "", host: "console:3000", want: true},
		{origin: "http://console:8080", host: "console:3000", want: true},
		{origin: "http://other", host: "console:3000", want: false},
		{origin: "https://dispatch.example", host: "x", allowed: []string{"https://dispatch.example"}, want: true},
		{origin: "https://dispatch.example", host: "x", allowed: []string{"dispatch.example"}, want: true},
		{origin: "https://other.example", host: "x", allowed: []string{"dispatch.example"}, want: false},
		{origin: "http://[::1]:9000", host: "[::1]:3000", want: true},
	}
	for _, tc := range cases {
		request := httptest.NewRequest(http.MethodGet, "/ws", nil)
		request.Host = tc.host
		if tc.origin != "" {
			request.Header.Set("Origin", tc.origin)
		}
		if got := isOriginAllowed(request, tc.allowed); got != tc.want {
			t.Fatalf("origin %q host %q allowed %v: expected %v, got %v", tc.origin, tc.host, tc.allowed, tc.want, got)
		}
	}
}

func TestCloseCodeForStatus(t *testing.T) {
	if closeCodeForStatus(http.StatusBadRequest) != websocket.CloseProtocolError {
		t.Fatal("bad request should map to protocol error")
	}
	if closeCodeForStatus(http.StatusForbidden) != websocket.ClosePolicyViolation {
		t.Fatal("forbidden should map to policy violation")
	}
	if closeCodeForStatus(http.StatusServiceUnavailable) != websocket.CloseTryAgainLater {
		t.Fatal("unavailable should map to try again later")
	}
	if closeCodeForStatus(http.StatusInternalServerError) != websocket.CloseInternalServerErr {
		t.Fatal("server errors should map to internal error")
	}
}
