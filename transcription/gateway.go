package transcription

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/voxrelay/errors"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/observability"
	"github.com/kbukum/voxrelay/provider"
	"github.com/kbukum/voxrelay/resilience"
)

// Gateway routes a session's audio to the configured backend: batch
// providers for finished recordings, a Streamer for live audio.
type Gateway struct {
	cfg      Config
	batch    *provider.Manager[Provider]
	streamer Streamer
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryConfig
	metrics  *observability.Metrics
	log      *logger.Logger
}

// NewGateway creates a Gateway. batch is required in batch mode and
// streamer in the streaming modes; the other may be nil.
func NewGateway(cfg Config, batch *provider.Manager[Provider], streamer Streamer, metrics *observability.Metrics, log *logger.Logger) (*Gateway, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode == ModeBatch && batch == nil {
		return nil, errors.New("transcription: batch mode requires a batch backend")
	}
	if cfg.Mode.Streaming() && streamer == nil {
		return nil, errors.New("transcription: streaming mode requires a streamer")
	}

	g := &Gateway{
		cfg:      cfg,
		batch:    batch,
		streamer: streamer,
		metrics:  metrics,
		log:      log.WithComponent("transcription"),
	}
	g.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "transcription",
		MaxFailures:  cfg.BreakerFailures,
		ResetTimeout: cfg.BreakerReset,
		IsFailure:    resilience.IsRetryable,
		OnStateChange: func(name string, from, to resilience.BreakerState) {
			g.log.Warn("Transcription circuit changed state", logger.Fields("from", from.String(), "to", to.String()))
		},
	})

	g.retry = resilience.DefaultRetryConfig()
	g.retry.MaxAttempts = cfg.MaxAttempts
	g.retry.InitialBackoff = cfg.InitialBackoff
	g.retry.RetryIf = func(err error) bool {
		return !errors.Is(err, resilience.ErrCircuitOpen) && resilience.IsRetryable(err)
	}
	g.retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		g.log.Warn("Retrying transcription", logger.Fields("attempt", attempt, "backoff_ms", backoff.Milliseconds(), "error", err.Error()))
	}
	return g, nil
}

// Mode returns the configured mode.
func (g *Gateway) Mode() Mode { return g.cfg.Mode }

// FinalTimeout bounds the wait for a streaming final.
func (g *Gateway) FinalTimeout() time.Duration { return g.cfg.FinalTimeout }

// Transcribe submits a finished file to a batch backend and returns the
// final result. Cancellation returns the context error unchanged; every
// other failure is a TRANSCRIPTION_ERROR.
func (g *Gateway) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	if g.batch == nil {
		return nil, apperrors.TranscriptionFailed(string(g.cfg.Mode), errors.New("no batch backend configured"))
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanTranscription)
	defer span.End()
	observability.SetSpanAttributes(ctx, attribute.String(observability.AttrMode, string(ModeBatch)))

	start := time.Now()
	resp, err := resilience.Retry(ctx, g.retry, func() (*TranscriptionResponse, error) {
		return resilience.ExecuteBreaker(g.breaker, func() (*TranscriptionResponse, error) {
			p, err := g.batch.Get(ctx)
			if err != nil {
				return nil, apperrors.ServiceUnavailable("transcription backend").WithCause(err)
			}
			return p.Transcribe(ctx, TranscriptionRequest{AudioPath: audioPath, Language: g.cfg.Language})
		})
	})
	elapsed := time.Since(start)

	if err != nil {
		observability.SetSpanError(ctx, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			g.metrics.RecordStage(ctx, observability.StageTranscription, "cancelled", elapsed)
			return nil, ctxErr
		}
		g.metrics.RecordStage(ctx, observability.StageTranscription, "failed", elapsed)
		g.metrics.RecordError(ctx, string(apperrors.ErrCodeTranscription), "transcription")
		return nil, g.wrap(err)
	}

	g.metrics.RecordStage(ctx, observability.StageTranscription, "ok", elapsed)
	result := resp.Result()
	result.Latency = elapsed
	return &result, nil
}

// Open starts a live upstream for sessionID.
func (g *Gateway) Open(ctx context.Context, sessionID string) (Stream, error) {
	if g.streamer == nil {
		return nil, apperrors.TranscriptionFailed(string(g.cfg.Mode), errors.New("no streaming backend configured"))
	}
	stream, err := g.streamer.Open(ctx, sessionID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		g.metrics.RecordError(ctx, string(apperrors.ErrCodeTranscription), "transcription")
		return nil, g.wrap(err)
	}
	return stream, nil
}

// BreakerState reports the batch circuit state.
func (g *Gateway) BreakerState() resilience.BreakerState { return g.breaker.State() }

// Providers returns the batch backends, if any.
func (g *Gateway) Providers() []Provider {
	if g.batch == nil {
		return nil
	}
	return g.batch.All()
}

func (g *Gateway) wrap(err error) error {
	if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeTranscription {
		return appErr
	}
	return apperrors.TranscriptionFailed(string(g.cfg.Mode), err)
}
