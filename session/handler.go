package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kbukum/voxrelay/channel"
	apperrors "github.com/kbukum/voxrelay/errors"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/relay"
)

// ErrShuttingDown is returned by Serve once Shutdown has begun.
var ErrShuttingDown = errors.New("session: handler is shutting down")

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHub tees every message sent to a client to the connection's
// observers on hub.
func WithHub(hub *relay.Hub) HandlerOption {
	return func(h *Handler) { h.hub = hub }
}

// WithAllowedOrigins restricts websocket upgrades to the given origins.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handler) { h.upgrader = channel.NewUpgrader(origins) }
}

// WithConnOptions overrides the client connection settings.
func WithConnOptions(opts channel.Options) HandlerOption {
	return func(h *Handler) { h.connOpts = opts }
}

// Handler accepts client websockets and runs successive session turns on
// each until the connection ends.
type Handler struct {
	cfg      Config
	deps     Deps
	hub      *relay.Hub
	registry *Registry
	upgrader *websocket.Upgrader
	connOpts channel.Options
	log      *logger.Logger

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	conns  int
	wg     sync.WaitGroup
}

// NewHandler creates a Handler.
func NewHandler(cfg Config, deps Deps, log *logger.Logger, opts ...HandlerOption) *Handler {
	cfg.ApplyDefaults()
	base, cancel := context.WithCancel(context.Background())
	h := &Handler{
		cfg:      cfg,
		deps:     deps,
		registry: NewRegistry(),
		upgrader: channel.NewUpgrader(nil),
		connOpts: channel.DefaultOptions(),
		log:      log.WithComponent("session"),
		base:     base,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry returns the live session registry.
func (h *Handler) Registry() *Registry { return h.registry }

// Connections returns the number of open client connections.
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns
}

// ServeHTTP upgrades the request and serves the connection until it ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isClosed() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", logger.Fields(logger.FieldError, err.Error(), "remote_addr", r.RemoteAddr))
		return
	}
	conn := channel.New(ws, uuid.NewString(), h.log, h.connOpts)
	h.log.Info("Client connected", logger.Fields(logger.FieldConnectionID, conn.ID(), "remote_addr", r.RemoteAddr))
	if err := h.Serve(conn); err != nil {
		h.log.Warn("Client rejected", logger.Fields(logger.FieldConnectionID, conn.ID(), logger.FieldError, err.Error()))
	}
}

// Serve runs session turns on conn until the client leaves, a session
// times out or the handler shuts down. conn is closed on return.
func (h *Handler) Serve(conn *channel.Conn) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return ErrShuttingDown
	}
	h.conns++
	h.wg.Add(1)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.conns--
		h.mu.Unlock()
		h.wg.Done()
	}()

	ctx, cancel := context.WithCancel(h.base)
	defer cancel()
	defer conn.Close() //nolint:errcheck // best-effort close frame

	frames := conn.Frames(ctx)
	out := &teeSender{conn: conn, hub: h.hub, pattern: relay.ObserverPattern(conn.ID())}

	var pending []channel.Frame
	for turn := 1; ; turn++ {
		s := New(fmt.Sprintf("%s-%d", conn.ID(), turn), h.cfg, h.deps, out, h.log, WithDisconnect(conn.Done()))
		h.registry.Add(conn.ID(), s)
		outcome := s.Run(ctx, frames, pending...)
		h.registry.Remove(s.ID())
		pending = s.Pending()

		if outcome.EndsConnection() {
			h.log.Info("Client connection ended", logger.Fields(
				logger.FieldConnectionID, conn.ID(),
				"turns", turn,
				"outcome", outcome.String(),
			))
			return nil
		}
	}
}

// Shutdown stops accepting connections, cancels every live session and
// waits for them to release their resources or for ctx to end.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session: shutdown: %w", ctx.Err())
	}
}

func (h *Handler) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// teeSender writes each message to the client and publishes a copy to
// the connection's observers.
type teeSender struct {
	conn    *channel.Conn
	hub     *relay.Hub
	pattern string
}

func (t *teeSender) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return apperrors.Internal(err)
	}
	if t.hub != nil {
		t.hub.Publish(t.pattern, data)
	}
	return t.conn.SendRaw(data)
}
