package relay

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/voxrelay/logger"
)

const defaultClientBuffer = 256

// ObserverClientID is the hub id of one SSE observer of a session.
func ObserverClientID(sessionID, observerID string) string {
	return "session:" + sessionID + ":observer:" + observerID
}

// ObserverPattern matches every observer of a session.
func ObserverPattern(sessionID string) string { return "session:" + sessionID + ":observer:*" }

// Client is one subscriber registered on the Hub.
type Client struct {
	id     string
	events chan []byte
	log    *logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBuffer sets how many undelivered messages the client holds before
// new ones are dropped.
func WithBuffer(n int) ClientOption {
	return func(c *Client) { c.events = make(chan []byte, n) }
}

// NewClient creates a subscriber with the given hub id.
func NewClient(id string, opts ...ClientOption) *Client {
	c := &Client{id: id}
	for _, opt := range opts {
		opt(c)
	}
	if c.events == nil {
		c.events = make(chan []byte, defaultClientBuffer)
	}
	return c
}

// ID returns the client's hub id.
func (c *Client) ID() string { return c.id }

// Events yields published messages. It is closed on unregister.
func (c *Client) Events() <-chan []byte { return c.events }

// send is called from the hub loop only.
func (c *Client) send(data []byte) bool {
	select {
	case c.events <- data:
		return true
	default:
		c.log.Warn("Client buffer full, dropping message", logger.Fields("client_id", c.id))
		return false
	}
}

// Hub delivers messages to the clients whose id matches a glob pattern.
// All registry changes and deliveries happen on the Run goroutine, so a
// client never receives a message after it is unregistered.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	publish    chan message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *logger.Logger
}

type message struct {
	pattern string
	data    []byte
}

// NewHub creates a hub. Call Run to start delivery.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan message, 256),
		done:       make(chan struct{}),
		log:        log.WithComponent("relay"),
	}
}

// Run is the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			client.log = h.log
			h.mu.Lock()
			if old, ok := h.clients[client.id]; ok {
				close(old.events)
			}
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client registered", logger.Fields("client_id", client.id, "total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.id]; ok && current == client {
				delete(h.clients, client.id)
				close(client.events)
			}
			h.mu.Unlock()

		case msg := <-h.publish:
			h.deliver(msg)
		}
	}
}

// Stop ends Run and closes every client. Safe to call multiple times.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.events)
		delete(h.clients, id)
	}
}

// Register adds a client. It is a no-op after Stop.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		// Run has exited; leave the client closed so readers end.
		close(client.events)
	}
}

// Unregister removes client and closes its Events channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues data for every client whose id matches pattern.
// Pattern uses filepath.Match syntax, e.g. ObserverPattern(id).
func (h *Hub) Publish(pattern string, data []byte) {
	select {
	case h.publish <- message{pattern: pattern, data: data}:
	case <-h.done:
	}
}

func (h *Hub) deliver(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		matched, err := filepath.Match(msg.pattern, id)
		if err != nil {
			h.log.Error("Bad publish pattern", logger.Fields("pattern", msg.pattern, logger.FieldError, err.Error()))
			return
		}
		if matched {
			client.send(msg.data)
		}
	}
}

// HasClient reports whether a client with id is registered.
func (h *Hub) HasClient(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[id]
	return ok
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
