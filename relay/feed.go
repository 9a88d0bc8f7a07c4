package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/transcription"
	"github.com/kbukum/voxrelay/version"
)

// ErrFeedClosed is returned when writing to a stream whose upstream is gone.
var ErrFeedClosed = errors.New("relay: upstream feed closed")

// FeedConfig configures the shared upstream.
type FeedConfig struct {
	URL          string        `yaml:"url" mapstructure:"url"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// ApplyDefaults fills unset fields.
func (c *FeedConfig) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "ws://127.0.0.1:8765/"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Feed multiplexes every session over one upstream websocket. Outbound
// frames carry the session tag and inbound transcripts are queued on the
// stream with the matching tag. The connection is dialed by the first Open
// and closed when the last stream closes.
//
// Delivery to a stream is lossless and never blocks the shared read loop:
// each stream queues what its consumer has not taken yet.
type Feed struct {
	cfg    FeedConfig
	dialer *websocket.Dialer
	log    *logger.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	refs    int
	streams map[string]*feedStream

	writeMu sync.Mutex
}

var _ transcription.Streamer = (*Feed)(nil)

// NewFeed creates a Feed for the upstream at cfg.URL.
func NewFeed(cfg FeedConfig, log *logger.Logger) *Feed {
	cfg.ApplyDefaults()
	return &Feed{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		streams: make(map[string]*feedStream),
		log:     log.WithComponent("relay"),
	}
}

// Open subscribes sessionID to the shared upstream, dialing it if needed.
func (f *Feed) Open(ctx context.Context, sessionID string) (transcription.Stream, error) {
	f.mu.Lock()
	if f.conn == nil {
		conn, _, err := f.dialer.DialContext(ctx, f.cfg.URL, http.Header{"User-Agent": {version.UserAgent()}})
		if err != nil {
			f.mu.Unlock()
			return nil, fmt.Errorf("dial %s: %w", f.cfg.URL, err)
		}
		f.conn = conn
		go f.readLoop(conn)
		f.log.Info("Upstream feed connected", logger.Fields("url", f.cfg.URL))
	}
	f.refs++

	st := &feedStream{
		feed:      f,
		sessionID: sessionID,
		results:   make(chan transcription.Result),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	f.streams[sessionID] = st
	f.mu.Unlock()

	go st.pump()
	return st, nil
}

// Refs returns the number of open streams.
func (f *Feed) Refs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs
}

// Connected reports whether the upstream is currently dialed.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn != nil
}

// Close drops the upstream regardless of open streams. Those streams end
// once their queued results are taken.
func (f *Feed) Close() error {
	f.mu.Lock()
	conn := f.conn
	f.conn = nil
	var open []*feedStream
	if conn != nil {
		for _, st := range f.streams {
			open = append(open, st)
		}
	}
	f.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := f.closeConn(conn)
	for _, st := range open {
		st.lose()
	}
	return err
}

func (f *Feed) closeConn(conn *websocket.Conn) error {
	f.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	f.writeMu.Unlock()
	return conn.Close()
}

func (f *Feed) release(st *feedStream) {
	f.mu.Lock()
	if f.streams[st.sessionID] == st {
		delete(f.streams, st.sessionID)
	}
	f.refs--
	var conn *websocket.Conn
	if f.refs == 0 && f.conn != nil {
		conn = f.conn
		f.conn = nil
	}
	f.mu.Unlock()

	if conn != nil {
		f.log.Info("Upstream feed idle, disconnecting")
		_ = f.closeConn(conn)
	}
}

func (f *Feed) write(ctx context.Context, msg transcription.WireMessage) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return ErrFeedClosed
	}

	deadline := time.Now().Add(f.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

func (f *Feed) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			f.dropConn(conn, err)
			return
		}

		msg, ok, err := transcription.ParseTranscript(payload)
		if err != nil {
			f.log.Warn("Skipping undecodable upstream message", logger.Fields(logger.FieldError, err.Error()))
			continue
		}
		if !ok {
			continue
		}
		if msg.Session == "" {
			f.log.Warn("Dropping untagged transcript")
			continue
		}
		f.mu.Lock()
		st, known := f.streams[msg.Session]
		f.mu.Unlock()
		if !known {
			f.log.Warn("Dropping transcript for unknown session", logger.Fields(logger.FieldSessionID, msg.Session))
			continue
		}
		st.deliver(msg.Result())
	}
}

// dropConn ends every stream riding on conn after an upstream failure.
func (f *Feed) dropConn(conn *websocket.Conn, err error) {
	f.mu.Lock()
	current := f.conn == conn
	if current {
		f.conn = nil
	}
	var orphaned []*feedStream
	if current {
		for _, st := range f.streams {
			orphaned = append(orphaned, st)
		}
	}
	f.mu.Unlock()

	if !current {
		return
	}
	f.log.Warn("Upstream feed lost", logger.Fields(logger.FieldError, err.Error(), "streams", len(orphaned)))
	_ = conn.Close()
	for _, st := range orphaned {
		st.lose()
	}
}

// feedStream is one session's view of the shared upstream. Results are
// queued by the feed's read loop and handed to the consumer in order by
// pump.
type feedStream struct {
	feed      *Feed
	sessionID string
	results   chan transcription.Result
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	queue  []transcription.Result
	lost   bool
	notify chan struct{}
}

func (s *feedStream) Send(ctx context.Context, pcm []byte) error {
	return s.feed.write(ctx, transcription.AudioStreamMessage(s.sessionID, pcm))
}

func (s *feedStream) End(ctx context.Context, replace []byte) error {
	return s.feed.write(ctx, transcription.AudioEndMessage(s.sessionID, replace))
}

func (s *feedStream) Results() <-chan transcription.Result { return s.results }

func (s *feedStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.feed.release(s)
	})
	return nil
}

func (s *feedStream) deliver(r transcription.Result) {
	s.mu.Lock()
	s.queue = append(s.queue, r)
	s.mu.Unlock()
	s.wake()
}

// lose marks the upstream as gone. Results already queued are still
// delivered before Results is closed.
func (s *feedStream) lose() {
	s.mu.Lock()
	s.lost = true
	s.mu.Unlock()
	s.wake()
}

func (s *feedStream) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// pump hands queued results to the consumer until the stream closes or
// the upstream is lost and the queue is drained.
func (s *feedStream) pump() {
	defer close(s.results)
	for {
		s.mu.Lock()
		batch, lost := s.queue, s.lost
		s.queue = nil
		s.mu.Unlock()

		for _, r := range batch {
			select {
			case s.results <- r:
			case <-s.done:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}
		if lost {
			return
		}
		select {
		case <-s.notify:
		case <-s.done:
			return
		}
	}
}
