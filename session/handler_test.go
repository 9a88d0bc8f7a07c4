package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbukum/voxrelay/channel"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/relay"
)

func startHandler(t *testing.T, opts ...HandlerOption) (*Handler, *httptest.Server) {
	t.Helper()
	cfg := Config{SpoolDir: t.TempDir(), IdleTimeout: 5 * time.Second}
	deps := Deps{Transcoder: &fakeTranscoder{}, Transcriber: &fakeTranscriber{}}
	h := NewHandler(cfg, deps, logger.NewDefault("test"), opts...)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendTurn(t *testing.T, ws *websocket.Conn, audio []byte) {
	t.Helper()
	if err := ws.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte(channel.StopSentinel)); err != nil {
		t.Fatalf("write stop: %v", err)
	}
}

func readTranscription(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == MsgTranscription {
			text, _ := msg.Data["text"].(string)
			return text
		}
	}
}

func TestHandlerRunsSuccessiveTurns(t *testing.T) {
	hub := relay.NewHub(logger.NewDefault("test"))
	go hub.Run()
	defer hub.Stop()

	h, srv := startHandler(t, WithHub(hub))
	ws := dial(t, srv)

	first := []byte("first recording")
	sendTurn(t, ws, first)
	if got := readTranscription(t, ws); got != digest(first) {
		t.Fatalf("turn 1: unexpected transcript %q", got)
	}

	waitFor(t, func() bool { return h.Registry().Len() == 1 }, "next turn was not registered")
	connID := h.Registry().List()[0].ConnectionID

	observer := relay.NewClient(relay.ObserverClientID(connID, "test"))
	hub.Register(observer)
	waitFor(t, func() bool { return hub.HasClient(observer.ID()) }, "observer was not registered")

	second := []byte("second recording")
	sendTurn(t, ws, second)
	if got := readTranscription(t, ws); got != digest(second) {
		t.Fatalf("turn 2: unexpected transcript %q", got)
	}

	select {
	case event := <-observer.Events():
		var msg TranscriptionMessage
		if err := json.Unmarshal(event, &msg); err != nil {
			t.Fatalf("observer event: %v", err)
		}
		if msg.Type != MsgTranscription || msg.Data.Text != digest(second) {
			t.Errorf("observer saw %s", event)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("observer received nothing")
	}

	ws.Close()
	waitFor(t, func() bool { return h.Connections() == 0 }, "connection was not released")
	if h.Registry().Len() != 0 {
		t.Errorf("expected no live sessions, got %d", h.Registry().Len())
	}
}

func TestHandlerShutdown(t *testing.T) {
	h, srv := startHandler(t)
	ws := dial(t, srv)

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("partial audio")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		list := h.Registry().List()
		return len(list) == 1 && list[0].State == StateCapturing
	}, "session never started capturing")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if h.Connections() != 0 || h.Registry().Len() != 0 {
		t.Error("expected every connection and session to be released")
	}

	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("expected the client connection to be closed")
	}

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after shutdown, got %d", resp.StatusCode)
	}
}
