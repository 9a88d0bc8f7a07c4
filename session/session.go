// Package session runs the per-turn capture pipeline: buffer the client's
// audio, persist and transcode it, obtain a transcript and a summary, and
// relay every result back over the client connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/voxrelay/channel"
	apperrors "github.com/kbukum/voxrelay/errors"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/observability"
	"github.com/kbukum/voxrelay/summarization"
	"github.com/kbukum/voxrelay/transcode"
	"github.com/kbukum/voxrelay/transcription"
)

// Sender delivers server messages to the client. *channel.Conn implements it.
type Sender interface {
	Send(msg any) error
}

// Transcoder converts a finalized recording. *transcode.Transcoder implements it.
type Transcoder interface {
	Convert(ctx context.Context, input, output string, format transcode.Format) (string, error)
	Format() transcode.Format
}

// Transcriber reaches the speech-to-text backend. *transcription.Gateway implements it.
type Transcriber interface {
	Mode() transcription.Mode
	FinalTimeout() time.Duration
	Transcribe(ctx context.Context, audioPath string) (*transcription.Result, error)
	Open(ctx context.Context, sessionID string) (transcription.Stream, error)
}

// Summarizer condenses a final transcript.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*summarization.Summary, error)
}

// Archiver persists a finalized recording and returns where it went.
type Archiver interface {
	Save(ctx context.Context, sessionID, localPath string) (string, error)
}

// Deps are the shared services a session calls. Summarizer and Archive
// are optional; Metrics may be nil.
type Deps struct {
	Transcoder  Transcoder
	Transcriber Transcriber
	Summarizer  Summarizer
	Archive     Archiver
	Metrics     *observability.Metrics
}

// Outcome is why a session ended.
type Outcome int

const (
	// OutcomeCompleted means the turn produced its result, or stopped empty.
	OutcomeCompleted Outcome = iota
	// OutcomeFailed means a terminal error was reported to the client.
	OutcomeFailed
	// OutcomeDisconnected means the client connection went away.
	OutcomeDisconnected
	// OutcomeTimedOut means no frame arrived within the idle timeout.
	OutcomeTimedOut
	// OutcomeCancelled means the server shut the session down.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeDisconnected:
		return "disconnected"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// EndsConnection reports whether no further turn may start on the connection.
func (o Outcome) EndsConnection() bool {
	return o == OutcomeDisconnected || o == OutcomeTimedOut || o == OutcomeCancelled
}

var errUpstreamClosed = errors.New("upstream closed before the final transcript")

type jobKind int

const (
	jobPersist jobKind = iota + 1
	jobTranscribe
	jobSummarize
)

type jobResult struct {
	kind     jobKind
	location string
	result   *transcription.Result
	summary  *summarization.Summary
	err      error
}

// Session is one capture turn. All of its state is owned by the goroutine
// running Run; only State, RawBytes and the identity accessors may be read
// from elsewhere.
type Session struct {
	id   string
	cfg  Config
	deps Deps
	out  Sender
	log  *logger.Logger

	state     atomic.Int32
	rawBytes  atomic.Int64
	startedAt time.Time

	protocol channel.Protocol
	buffer   *Buffer
	replace  []byte
	upstream transcription.Stream
	results  <-chan transcription.Result

	awaitingFinal bool
	finalTimer    *time.Timer
	endSentAt     time.Time

	jobs      chan jobResult
	jobCancel context.CancelFunc
	jobActive bool

	queue      []channel.Frame
	held       []channel.Frame
	heldBytes  int64
	keepSpool  bool
	outputPath string
	failed     bool
	sendErr    error

	gone <-chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithDisconnect ends the session as disconnected as soon as gone is
// closed, even while it has stopped reading frames.
func WithDisconnect(gone <-chan struct{}) Option {
	return func(s *Session) { s.gone = gone }
}

// New creates an idle session. id should be unique for the process.
func New(id string, cfg Config, deps Deps, out Sender, log *logger.Logger, opts ...Option) *Session {
	cfg.ApplyDefaults()
	s := &Session{
		id:        id,
		cfg:       cfg,
		deps:      deps,
		out:       out,
		log:       log.WithComponent("session").WithFields(logger.Fields(logger.FieldSessionID, id)),
		jobs:      make(chan jobResult, 1),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(int32(StateIdle))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// RawBytes returns the number of audio bytes currently buffered.
func (s *Session) RawBytes() int64 { return s.rawBytes.Load() }

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Pending returns frames that arrived for the next turn while this one was
// producing its result. Valid after Run returns.
func (s *Session) Pending() []channel.Frame {
	return append(s.queue, s.held...)
}

// Run drives the session until it closes. Frames in carried are handled
// before anything read from frames. Run always leaves the session Closed
// with its spool and upstream released.
func (s *Session) Run(ctx context.Context, frames <-chan channel.Frame, carried ...channel.Frame) (outcome Outcome) {
	ctx = logger.ContextWithSessionID(ctx, s.id)
	ctx, span := observability.StartSpan(ctx, observability.SpanSession,
		trace.WithAttributes(attribute.String(observability.AttrSessionID, s.id)))
	ctx, cancel := context.WithCancel(ctx)
	s.deps.Metrics.SessionStarted(ctx)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Session panicked", logger.Fields("panic", fmt.Sprint(r), "stack", string(debug.Stack())))
			s.fail(ctx, apperrors.Internal(fmt.Errorf("panic: %v", r)))
			outcome = OutcomeFailed
		}
		cancel()
		s.close(outcome)
		span.SetAttributes(attribute.String("outcome", outcome.String()))
		span.End()
		s.deps.Metrics.SessionEnded(context.WithoutCancel(ctx), outcome.String(), time.Since(s.startedAt))
	}()

	s.queue = carried
	idle := time.NewTimer(s.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		if s.sendErr != nil {
			return OutcomeDisconnected
		}

		busy := s.State().Busy()
		if !busy && len(s.queue) > 0 {
			f := s.queue[0]
			s.queue = s.queue[1:]
			idle.Reset(s.cfg.IdleTimeout)
			if done, oc := s.handleFrame(ctx, f); done {
				return oc
			}
			continue
		}

		in := frames
		if busy && s.heldBytes >= s.cfg.PendingLimit {
			in = nil
		}
		var idleC, finalC <-chan time.Time
		if !busy {
			idleC = idle.C
		}
		if s.finalTimer != nil {
			finalC = s.finalTimer.C
		}

		select {
		case <-ctx.Done():
			return OutcomeCancelled

		case <-s.gone:
			s.log.Warn("Connection lost", logger.Fields(logger.FieldState, s.State().String()))
			return OutcomeDisconnected

		case f, ok := <-in:
			if !ok {
				return OutcomeDisconnected
			}
			if f.Kind == channel.FrameClosed {
				if f.Err != nil {
					s.log.Warn("Connection lost", logger.Fields(logger.FieldState, s.State().String(), logger.FieldError, f.Err.Error()))
				}
				return OutcomeDisconnected
			}
			if busy {
				s.hold(f)
				continue
			}
			idle.Reset(s.cfg.IdleTimeout)
			if done, oc := s.handleFrame(ctx, f); done {
				return oc
			}

		case r, ok := <-s.results:
			if done, oc := s.handleResult(ctx, r, ok); done {
				return oc
			}

		case res := <-s.jobs:
			if done, oc := s.handleJob(ctx, res); done {
				return oc
			}

		case <-finalC:
			s.finalTimer = nil
			_, oc := s.terminate(ctx, apperrors.Timeout("final transcript").
				WithDetail("timeout", s.deps.Transcriber.FinalTimeout().String()))
			return oc

		case <-idleC:
			s.log.Info("Session idle, closing", logger.Fields("idle_timeout", s.cfg.IdleTimeout.String()))
			s.fail(ctx, apperrors.SessionTimeout(s.cfg.IdleTimeout.String()))
			return OutcomeTimedOut
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, f channel.Frame) (bool, Outcome) {
	state := s.State()
	if state != StateIdle && f.Protocol != s.protocol {
		s.log.Warn("Ignoring frame from the other client protocol", logger.Fields(
			"locked", s.protocol.String(), "got", f.Protocol.String(), "kind", f.Kind.String(),
		))
		return false, OutcomeCompleted
	}

	switch f.Kind {
	case channel.FrameAudio:
		if state == StateIdle {
			if err := s.startCapture(ctx, f.Protocol); err != nil {
				return s.terminate(ctx, err)
			}
		}
		if err := s.buffer.Append(f.Data); err != nil {
			return s.terminate(ctx, err)
		}
		s.rawBytes.Add(int64(len(f.Data)))
		s.deps.Metrics.AudioReceived(ctx, len(f.Data))
		if s.upstream != nil {
			if err := s.upstream.Send(ctx, f.Data); err != nil {
				return s.terminate(ctx, s.streamError(err))
			}
		}
		if s.cfg.AckChunks {
			ts := f.Timestamp
			if ts == 0 {
				ts = time.Now().UnixMilli()
			}
			s.send(AudioReceived{Type: MsgAudioReceived, Timestamp: ts, Size: len(f.Data)})
		}
		return false, OutcomeCompleted

	case channel.FrameStop:
		if state == StateIdle {
			if len(f.Replace) == 0 {
				s.log.Debug("Stop before any audio, nothing to do")
				return true, OutcomeCompleted
			}
			if err := s.startCapture(ctx, f.Protocol); err != nil {
				return s.terminate(ctx, err)
			}
		}
		return s.stop(ctx, f)
	}
	return false, OutcomeCompleted
}

func (s *Session) startCapture(ctx context.Context, protocol channel.Protocol) error {
	enc := EncodingContainer
	if protocol == channel.ProtocolEnvelope {
		enc = EncodingPCM16
	}
	buf, err := NewBuffer(s.cfg.SpoolDir, s.id, enc, s.cfg.SampleRate)
	if err != nil {
		return err
	}
	s.buffer = buf
	s.protocol = protocol
	if err := s.transition(StateCapturing); err != nil {
		return err
	}

	mode := s.deps.Transcriber.Mode()
	if mode.Streaming() {
		st, err := s.deps.Transcriber.Open(ctx, s.id)
		if err != nil {
			return err
		}
		s.upstream = st
		s.results = st.Results()
	}
	s.log.Info("Capture started", logger.Fields("protocol", protocol.String(), "mode", string(mode), logger.FieldPath, buf.Path()))
	return nil
}

func (s *Session) stop(ctx context.Context, f channel.Frame) (bool, Outcome) {
	if f.Replace != nil {
		if err := s.buffer.Replace(f.Replace); err != nil {
			return s.terminate(ctx, err)
		}
		s.replace = f.Replace
		s.rawBytes.Store(int64(len(f.Replace)))
	}
	if err := s.transition(StateFinalizing); err != nil {
		return s.terminate(ctx, err)
	}

	fctx, span := observability.StartSpan(ctx, observability.SpanFinalize)
	start := time.Now()
	path, err := s.buffer.Finalize()
	span.SetAttributes(attribute.Int64(observability.AttrBytes, s.buffer.Len()))
	if err != nil {
		observability.SetSpanError(fctx, err)
		span.End()
		s.deps.Metrics.RecordStage(ctx, observability.StageFinalize, "failed", time.Since(start))
		return s.terminate(ctx, err)
	}
	span.End()
	s.deps.Metrics.RecordStage(ctx, observability.StageFinalize, "ok", time.Since(start))

	if s.buffer.Len() == 0 {
		s.log.Debug("Stop with an empty buffer, nothing to transcribe")
		return true, OutcomeCompleted
	}
	s.log.Info("Capture finalized", logger.Fields(logger.FieldBytes, s.buffer.Len(), logger.FieldPath, path))

	if err := s.transition(StateTranscribing); err != nil {
		return s.terminate(ctx, err)
	}
	if s.deps.Archive != nil {
		s.startPersist(ctx, path)
		return false, OutcomeCompleted
	}
	return s.transcribe(ctx)
}

func (s *Session) startPersist(ctx context.Context, path string) {
	archive, id, metrics := s.deps.Archive, s.id, s.deps.Metrics
	s.startJob(ctx, jobPersist, func(ctx context.Context) jobResult {
		ctx, span := observability.StartSpan(ctx, observability.SpanPersist)
		defer span.End()
		start := time.Now()
		location, err := archive.Save(ctx, id, path)
		status := "ok"
		if err != nil {
			status = "failed"
			observability.SetSpanError(ctx, err)
		}
		metrics.RecordStage(ctx, observability.StagePersist, status, time.Since(start))
		return jobResult{location: location, err: err}
	})
}

// transcribe hands the finalized recording to the backend: a job in batch
// mode, audio-end and a bounded wait for the final in the streaming modes.
func (s *Session) transcribe(ctx context.Context) (bool, Outcome) {
	if s.upstream != nil {
		if err := s.upstream.End(ctx, s.replace); err != nil {
			return s.terminate(ctx, s.streamError(err))
		}
		s.awaitingFinal = true
		s.endSentAt = time.Now()
		s.finalTimer = time.NewTimer(s.deps.Transcriber.FinalTimeout())
		return false, OutcomeCompleted
	}

	transcoder, transcriber := s.deps.Transcoder, s.deps.Transcriber
	format := transcoder.Format()
	input := s.buffer.Path()
	output := filepath.Join(s.cfg.SpoolDir, "voxrelay-"+s.id+"-transcoded"+format.Ext())
	s.outputPath = output

	s.startJob(ctx, jobTranscribe, func(ctx context.Context) jobResult {
		converted, err := transcoder.Convert(ctx, input, output, format)
		if err != nil {
			return jobResult{err: err}
		}
		defer os.Remove(converted) //nolint:errcheck // consumed by the backend
		result, err := transcriber.Transcribe(ctx, converted)
		return jobResult{result: result, err: err}
	})
	return false, OutcomeCompleted
}

func (s *Session) summarize(ctx context.Context, text string) (bool, Outcome) {
	if err := s.transition(StateSummarizing); err != nil {
		return s.terminate(ctx, err)
	}
	if s.deps.Summarizer == nil || strings.TrimSpace(text) == "" {
		return true, OutcomeCompleted
	}

	summarizer, metrics := s.deps.Summarizer, s.deps.Metrics
	s.startJob(ctx, jobSummarize, func(ctx context.Context) jobResult {
		ctx, span := observability.StartSpan(ctx, observability.SpanSummarization)
		defer span.End()
		start := time.Now()
		summary, err := summarizer.Summarize(ctx, text)
		status := "ok"
		if err != nil {
			status = "failed"
			observability.SetSpanError(ctx, err)
		}
		metrics.RecordStage(ctx, observability.StageSummarization, status, time.Since(start))
		return jobResult{summary: summary, err: err}
	})
	return false, OutcomeCompleted
}

func (s *Session) handleJob(ctx context.Context, res jobResult) (bool, Outcome) {
	s.jobActive = false
	s.jobCancel()

	switch res.kind {
	case jobPersist:
		if res.err != nil {
			if ctx.Err() != nil {
				return true, OutcomeCancelled
			}
			s.log.Warn("Failed to save recording", logger.Fields(logger.FieldError, res.err.Error()))
			s.send(AudioSaveError{Type: MsgAudioSaveError, Error: res.err.Error()})
		} else {
			s.send(AudioSaved{Type: MsgAudioSaved, Path: res.location})
		}
		return s.transcribe(ctx)

	case jobTranscribe:
		if res.err != nil {
			if appErr, ok := apperrors.AsAppError(res.err); ok && appErr.Code == apperrors.ErrCodeTranscode {
				s.keepSpool = true
			}
			return s.terminate(ctx, res.err)
		}
		s.send(TranscriptionMessage{Type: MsgTranscription, Data: *res.result})
		s.log.Info("Transcript delivered",
			logger.DurationFields("transcribe", res.result.Latency),
			logger.Fields("chars", len(res.result.Text), "language", res.result.Language))
		return s.summarize(ctx, res.result.Text)

	case jobSummarize:
		if res.err != nil {
			if ctx.Err() != nil {
				return true, OutcomeCancelled
			}
			code := string(apperrors.ErrCodeSummarization)
			if appErr, ok := apperrors.AsAppError(res.err); ok {
				code = string(appErr.Code)
			}
			s.deps.Metrics.RecordError(ctx, code, "summarization")
			s.log.Warn("Summary unavailable", logger.Fields(logger.FieldError, res.err.Error()))
		} else if res.summary != nil {
			s.send(SummaryMessage{Type: MsgSummary, Data: res.summary.Text})
		}
		return true, OutcomeCompleted
	}
	return false, OutcomeCompleted
}

func (s *Session) handleResult(ctx context.Context, r transcription.Result, ok bool) (bool, Outcome) {
	if !ok {
		s.results = nil
		return s.terminate(ctx, s.streamError(errUpstreamClosed))
	}
	if !r.Final || !s.awaitingFinal {
		s.send(newTranscriptMessage(r))
		return false, OutcomeCompleted
	}

	s.awaitingFinal = false
	s.results = nil
	s.stopFinalTimer()
	s.send(newTranscriptMessage(r))
	s.deps.Metrics.RecordStage(ctx, observability.StageTranscription, "ok", time.Since(s.endSentAt))
	s.log.Info("Final transcript delivered", logger.Fields("chars", len(r.Text), "language", r.Language))
	return s.summarize(ctx, r.Text)
}

func (s *Session) startJob(ctx context.Context, kind jobKind, fn func(context.Context) jobResult) {
	jctx, cancel := context.WithCancel(ctx)
	s.jobCancel = cancel
	s.jobActive = true
	log := s.log
	go func() {
		res := func() (res jobResult) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("Session stage panicked", logger.Fields("panic", fmt.Sprint(r), "stack", string(debug.Stack())))
					res = jobResult{err: apperrors.Internal(fmt.Errorf("panic: %v", r))}
				}
			}()
			return fn(jctx)
		}()
		res.kind = kind
		s.jobs <- res
	}()
}

func (s *Session) hold(f channel.Frame) {
	s.held = append(s.held, f)
	s.heldBytes += int64(len(f.Data) + len(f.Replace))
}

func (s *Session) transition(to State) error {
	from := s.State()
	if !from.CanTransition(to) {
		return apperrors.Internal(fmt.Errorf("session: invalid transition %s -> %s", from, to))
	}
	s.state.Store(int32(to))
	s.log.Debug("State changed", logger.Fields("from", from.String(), logger.FieldState, to.String()))
	return nil
}

// terminate ends the session after err. Cancellation is silent; anything
// else is reported to the client.
func (s *Session) terminate(ctx context.Context, err error) (bool, Outcome) {
	if ctx.Err() != nil {
		return true, OutcomeCancelled
	}
	s.fail(ctx, err)
	return true, OutcomeFailed
}

// fail sends the session's one error message.
func (s *Session) fail(ctx context.Context, err error) {
	if s.failed {
		return
	}
	s.failed = true

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	observability.SetSpanError(ctx, err)
	s.deps.Metrics.RecordError(ctx, string(appErr.Code), "session")
	s.log.Error("Session failed", logger.Fields(
		"code", string(appErr.Code),
		logger.FieldState, s.State().String(),
		logger.FieldError, err.Error(),
	))
	s.send(newErrorMessage(appErr))
}

func (s *Session) send(msg any) {
	if s.sendErr != nil {
		return
	}
	if err := s.out.Send(msg); err != nil {
		s.sendErr = err
		s.log.Warn("Failed to send to client", logger.Fields(logger.FieldError, err.Error()))
	}
}

func (s *Session) streamError(err error) error {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	return apperrors.TranscriptionFailed(string(s.deps.Transcriber.Mode()), err)
}

func (s *Session) stopFinalTimer() {
	if s.finalTimer != nil {
		s.finalTimer.Stop()
		s.finalTimer = nil
	}
}

// close releases everything the session owns. In-flight stages have
// already been cancelled through the session context.
func (s *Session) close(outcome Outcome) {
	s.stopFinalTimer()
	if s.jobActive {
		<-s.jobs
		s.jobActive = false
	}
	if s.jobCancel != nil {
		s.jobCancel()
	}
	if s.upstream != nil {
		if err := s.upstream.Close(); err != nil {
			s.log.Debug("Upstream close failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}
	if s.buffer != nil {
		if s.keepSpool {
			s.log.Warn("Keeping transcode input for inspection", logger.Fields(logger.FieldPath, s.buffer.Path()))
		} else if err := s.buffer.Discard(); err != nil {
			s.log.Warn("Failed to remove spool file", logger.Fields(logger.FieldPath, s.buffer.Path(), logger.FieldError, err.Error()))
		}
	}
	if s.outputPath != "" {
		if err := os.Remove(s.outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("Failed to remove transcode output", logger.Fields(logger.FieldPath, s.outputPath, logger.FieldError, err.Error()))
		}
	}
	if s.State() != StateClosed {
		s.state.Store(int32(StateClosed))
	}

	s.log.Info("Session closed", logger.Fields(
		"outcome", outcome.String(),
		logger.FieldBytes, s.rawBytes.Load(),
		logger.FieldDuration, time.Since(s.startedAt).Milliseconds(),
	))
}
