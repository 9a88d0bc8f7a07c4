// Package channel adapts a client websocket into an ordered stream of
// decoded frames and a serialized JSON sender.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/kbukum/voxrelay/errors"
	"github.com/kbukum/voxrelay/logger"
)

// Options tunes a Conn.
type Options struct {
	// WriteTimeout bounds every outbound write. Zero disables the deadline.
	WriteTimeout time.Duration
	// ReadLimit caps the size of one inbound message in bytes.
	ReadLimit int64
	// FrameBuffer is how many decoded frames may queue ahead of the consumer
	// before the reader stops pulling from the socket.
	FrameBuffer int
	// PingInterval is how often a ping is written. A failed ping closes
	// Done, which is how a dead peer is noticed while the reader is parked
	// behind a full frame buffer.
	PingInterval time.Duration
}

// DefaultOptions returns the settings used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		WriteTimeout: 10 * time.Second,
		ReadLimit:    8 << 20,
		FrameBuffer:  16,
		PingInterval: 20 * time.Second,
	}
}

// NewUpgrader returns the websocket upgrader used for client connections.
// An empty allowedOrigins list accepts any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  32 << 10,
		WriteBufferSize: 32 << 10,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// Conn is one client connection. Reads happen on a single goroutine
// started by Frames; writes are serialized by Send.
type Conn struct {
	ws   *websocket.Conn
	id   string
	opts Options
	log  *logger.Logger

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error

	done     chan struct{}
	doneOnce sync.Once
}

// New wraps an upgraded websocket.
func New(ws *websocket.Conn, id string, log *logger.Logger, opts Options) *Conn {
	def := DefaultOptions()
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = def.ReadLimit
	}
	if opts.FrameBuffer <= 0 {
		opts.FrameBuffer = def.FrameBuffer
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	ws.SetReadLimit(opts.ReadLimit)
	return &Conn{
		ws:   ws,
		id:   id,
		opts: opts,
		log:  log.WithFields(logger.Fields(logger.FieldConnectionID, id)),
		done: make(chan struct{}),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() string { return c.id }

// Done is closed once the socket is known to be gone: the reader hit an
// error or a keepalive ping failed. It does not wait for FrameClosed to
// get through unread frames.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) signalDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Frames starts the reader and returns its frame stream. Frames arrive in
// socket order. The stream ends with exactly one FrameClosed and is then
// closed. When the consumer falls behind the reader blocks instead of
// dropping frames. Call Frames once per Conn.
func (c *Conn) Frames(ctx context.Context) <-chan Frame {
	out := make(chan Frame, c.opts.FrameBuffer)
	go c.readLoop(ctx, out)
	go c.keepalive(ctx)
	return out
}

func (c *Conn) keepalive(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
		c.mu.Unlock()
		if err != nil {
			c.log.Debug("Keepalive ping failed", logger.Fields(logger.FieldError, err.Error()))
			c.markClosed()
			c.signalDone()
			return
		}
	}
}

func (c *Conn) readLoop(ctx context.Context, out chan<- Frame) {
	defer close(out)
	for {
		mt, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.markClosed()
			c.signalDone()
			closed := Frame{Kind: FrameClosed}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				closed.Err = apperrors.ChannelFailed(err)
			}
			select {
			case out <- closed:
			case <-ctx.Done():
			}
			return
		}

		frame, err := Decode(mt, payload)
		if err != nil {
			if !errors.Is(err, ErrEmptyAudio) {
				c.log.Warn("Skipping undecodable frame", logger.ErrorFields("decode", err))
			}
			continue
		}

		select {
		case out <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// Send writes msg as a JSON text frame. It is a no-op once the connection
// is closed; write failures are returned as CHANNEL_ERROR.
func (c *Conn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return apperrors.Internal(err)
	}
	return c.SendRaw(data)
}

// SendRaw writes pre-encoded JSON as a text frame with Send's semantics.
func (c *Conn) SendRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return apperrors.ChannelFailed(err)
	}
	return nil
}

// Close sends a normal closure frame and closes the socket. Safe to call
// more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if !c.closed {
			c.closed = true
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		}
		c.mu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
