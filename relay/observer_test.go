package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/voxrelay/logger"
)

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return strings.TrimRight(line, "\n")
}

func TestServeObserver(t *testing.T) {
	hub := startHub(t)
	log := logger.NewDefault("test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeObserver(hub, w, r, "conn-1", log)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	if got := readLine(t, r); got != "event: "+EventConnected {
		t.Fatalf("expected connected event, got %q", got)
	}
	data := strings.TrimPrefix(readLine(t, r), "data: ")
	var ev ConnectedEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("decode connected event: %v", err)
	}
	if ev.SessionID != "conn-1" || !strings.HasPrefix(ev.ClientID, "session:conn-1:observer:") {
		t.Errorf("unexpected connected event %+v", ev)
	}
	readLine(t, r)

	if !hub.HasClient(ev.ClientID) {
		t.Fatal("observer not registered")
	}

	hub.Publish(ObserverPattern("conn-2"), []byte(`{"type":"other"}`))
	hub.Publish(ObserverPattern("conn-1"), []byte(`{"type":"transcription","data":"hi"}`))
	if got := readLine(t, r); got != `data: {"type":"transcription","data":"hi"}` {
		t.Errorf("unexpected event %q", got)
	}

	cancel()
	deadline := time.Now().Add(5 * time.Second)
	for hub.HasClient(ev.ClientID) {
		if time.Now().After(deadline) {
			t.Fatal("observer not unregistered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
