// Package transcriptiontest provides a fake whisper streaming server for
// tests.
package transcriptiontest

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbukum/voxrelay/transcription"
)

// Server speaks the streaming protocol. Transcript text is "<n> bytes",
// where n is the audio buffered for the session, so tests can check sums.
// Sessions are keyed by the message session tag; untagged traffic shares
// one key per connection.
type Server struct {
	srv *httptest.Server
	// URL is the ws:// address of the server.
	URL string

	partialInterval time.Duration
	language        string
	upgrader        websocket.Upgrader

	accepted atomic.Int32
	open     atomic.Int32

	mu     sync.Mutex
	finals map[string]int
	conns  map[*websocket.Conn]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithPartials makes the server send a partial for every non-empty
// session buffer at the given interval.
func WithPartials(d time.Duration) Option {
	return func(s *Server) { s.partialInterval = d }
}

// WithLanguage sets the language reported on transcripts.
func WithLanguage(lang string) Option {
	return func(s *Server) { s.language = lang }
}

// NewServer starts a fake server. Call Close when done.
func NewServer(opts ...Option) *Server {
	s := &Server{finals: make(map[string]int), conns: make(map[*websocket.Conn]struct{})}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http")
	return s
}

// Close drops open connections and shuts the server down.
func (s *Server) Close() {
	s.CloseClientConnections()
	s.srv.Close()
}

// CloseClientConnections drops every open connection abruptly.
func (s *Server) CloseClientConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// Accepted returns how many connections were upgraded.
func (s *Server) Accepted() int { return int(s.accepted.Load()) }

// Open returns how many connections are currently open.
func (s *Server) Open() int { return int(s.open.Load()) }

// FinalBytes returns the buffer length of the last final sent for session.
func (s *Server) FinalBytes(session string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.finals[session]
	return n, ok
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.accepted.Add(1)
	s.open.Add(1)
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
		s.open.Add(-1)
	}()

	var (
		writeMu sync.Mutex
		bufMu   sync.Mutex
		buffers = make(map[string][]byte)
		done    = make(chan struct{})
	)
	send := func(msg transcription.WireMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteJSON(msg)
	}
	transcript := func(session string, n int, partial bool) transcription.WireMessage {
		return transcription.WireMessage{
			Type:     transcription.MessageTranscript,
			Session:  session,
			Text:     fmt.Sprintf("%d bytes", n),
			Partial:  partial,
			Language: s.language,
		}
	}

	if s.partialInterval > 0 {
		go func() {
			ticker := time.NewTicker(s.partialInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					bufMu.Lock()
					var pending []transcription.WireMessage
					for session, buf := range buffers {
						if len(buf) > 0 {
							pending = append(pending, transcript(session, len(buf), true))
						}
					}
					bufMu.Unlock()
					for _, msg := range pending {
						send(msg)
					}
				}
			}
		}()
	}
	defer close(done)

	for {
		var msg transcription.WireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case transcription.MessageAudioStream:
			chunk, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				continue
			}
			bufMu.Lock()
			buffers[msg.Session] = append(buffers[msg.Session], chunk...)
			bufMu.Unlock()
		case transcription.MessageAudioEnd:
			bufMu.Lock()
			if msg.Data != "" {
				if full, err := base64.StdEncoding.DecodeString(msg.Data); err == nil {
					buffers[msg.Session] = full
				}
			}
			n := len(buffers[msg.Session])
			delete(buffers, msg.Session)
			bufMu.Unlock()

			s.mu.Lock()
			s.finals[msg.Session] = n
			s.mu.Unlock()
			send(transcript(msg.Session, n, false))
		}
	}
}
