// Package wsstream is a streaming transcription backend that opens one
// websocket per session to a whisper streaming server.
package wsstream

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

// Config configures the upstream connection.
type Config struct {
	// URL is the whisper streaming server, e.g. ws://gpu:8765/.
	URL          string        `yaml:"url" mapstructure:"url"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	// ResultBuffer is the number of undelivered results held per stream.
	ResultBuffer int `yaml:"result_buffer" mapstructure:"result_buffer"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "ws://127.0.0.1:8765/"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ResultBuffer == 0 {
		c.ResultBuffer = 16
	}
}

// Streamer dials a fresh upstream for every session.
type Streamer struct {
	cfg    Config
	dialer *websocket.Dialer
	log    *logger.Logger
}

var _ transcription.Streamer = (*Streamer)(nil)

// New creates a Streamer.
func New(cfg Config, log *logger.Logger) *Streamer {
	cfg.ApplyDefaults()
	return &Streamer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		log: log.WithComponent("wsstream"),
	}
}

// Open dials the upstream and starts its read loop.
func (s *Streamer) Open(ctx context.Context, sessionID string) (transcription.Stream, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, http.Header{"User-Agent": {version.UserAgent()}})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}

	st := &stream{
		sessionID:    sessionID,
		conn:         conn,
		writeTimeout: s.cfg.WriteTimeout,
		results:      make(chan transcription.Result, s.cfg.ResultBuffer),
		done:         make(chan struct{}),
		log:          s.log.WithFields(logger.Fields(logger.FieldSessionID, sessionID)),
	}
	go st.readLoop()

	st.log.Debug("Upstream opened", logger.Fields("url", s.cfg.URL))
	return st, nil
}

type stream struct {
	sessionID    string
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	results      chan transcription.Result
	done         chan struct{}
	closeOnce    sync.Once
	log          *logger.Logger
}

func (s *stream) Send(ctx context.Context, pcm []byte) error {
	return s.write(ctx, transcription.AudioStreamMessage("", pcm))
}

func (s *stream) End(ctx context.Context, replace []byte) error {
	return s.write(ctx, transcription.AudioEndMessage("", replace))
}

func (s *stream) Results() <-chan transcription.Result { return s.results }

func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *stream) write(ctx context.Context, msg transcription.WireMessage) error {
	select {
	case <-s.done:
		return errors.New("wsstream: stream closed")
	default:
	}

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

// readLoop forwards transcripts until the upstream ends or the stream is
// closed. Results for a closed stream are dropped.
func (s *stream) readLoop() {
	defer close(s.results)
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Warn("Upstream read failed", logger.Fields(logger.FieldError, err.Error()))
				}
			}
			return
		}

		msg, ok, err := transcription.ParseTranscript(payload)
		if err != nil {
			s.log.Warn("Skipping undecodable upstream message", logger.Fields(logger.FieldError, err.Error()))
			continue
		}
		if !ok {
			continue
		}

		select {
		case s.results <- msg.Result():
		case <-s.done:
			return
		}
	}
}
