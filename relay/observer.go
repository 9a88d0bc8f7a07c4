package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/voxrelay/logger"
)

// EventConnected is the first event an observer receives.
const EventConnected = "connected"

// KeepAliveInterval is the gap between SSE keep-alive comments. It stays
// below common proxy idle timeouts.
var KeepAliveInterval = 30 * time.Second

// ConnectedEvent is sent when an observer attaches.
type ConnectedEvent struct {
	ClientID  string `json:"client_id"`
	SessionID string `json:"session_id"`
}

// ServeObserver streams a copy of every message sent to sessionID's
// client as Server-Sent Events until the request ends or the hub stops.
func ServeObserver(hub *Hub, w http.ResponseWriter, r *http.Request, sessionID string, log *logger.Logger) {
	log = log.WithComponent("relay")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Observers are long-lived; the server's WriteTimeout must not apply.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("Could not disable write deadline", logger.Fields(logger.FieldError, err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	clientID := ObserverClientID(sessionID, uuid.NewString())
	client := NewClient(clientID)
	hub.Register(client)
	defer hub.Unregister(client)

	connected, _ := json.Marshal(ConnectedEvent{ClientID: clientID, SessionID: sessionID})
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventConnected, connected)
	flusher.Flush()

	log.Debug("Observer attached", logger.Fields(
		logger.FieldSessionID, sessionID,
		"client_id", clientID,
		"remote_addr", r.RemoteAddr,
	))

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-client.Events():
			if !ok {
				return
			}
			_, _ = fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}
