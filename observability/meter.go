package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Pipeline stages recorded by Metrics.RecordStage.
const (
	StageFinalize      = "finalize"
	StagePersist       = "persist"
	StageTranscode     = "transcode"
	StageTranscription = "transcription"
	StageSummarization = "summarization"
)

// InitMeter installs an OTLP/HTTP meter provider as the global provider.
// The caller shuts it down on exit.
func InitMeter(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.ExportInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the relay's instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	sessionsActive    metric.Int64UpDownCounter
	sessionsTotal     metric.Int64Counter
	sessionDuration   metric.Float64Histogram
	audioBytes        metric.Int64Counter
	stageDuration     metric.Float64Histogram
	transcodesRunning metric.Int64UpDownCounter
	errorTotal        metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.sessionsActive, err = meter.Int64UpDownCounter("voxrelay.sessions.active",
		metric.WithDescription("Capture sessions currently open")); err != nil {
		return nil, fmt.Errorf("creating sessions.active: %w", err)
	}
	if m.sessionsTotal, err = meter.Int64Counter("voxrelay.sessions.total",
		metric.WithDescription("Capture sessions closed, by outcome")); err != nil {
		return nil, fmt.Errorf("creating sessions.total: %w", err)
	}
	if m.sessionDuration, err = meter.Float64Histogram("voxrelay.session.duration",
		metric.WithDescription("Wall time from first frame to close"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating session.duration: %w", err)
	}
	if m.audioBytes, err = meter.Int64Counter("voxrelay.audio.bytes",
		metric.WithDescription("Audio bytes received from clients"), metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("creating audio.bytes: %w", err)
	}
	if m.stageDuration, err = meter.Float64Histogram("voxrelay.stage.duration",
		metric.WithDescription("Duration of pipeline stages"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating stage.duration: %w", err)
	}
	if m.transcodesRunning, err = meter.Int64UpDownCounter("voxrelay.transcode.running",
		metric.WithDescription("ffmpeg processes holding a slot")); err != nil {
		return nil, fmt.Errorf("creating transcode.running: %w", err)
	}
	if m.errorTotal, err = meter.Int64Counter("voxrelay.errors.total",
		metric.WithDescription("Errors by code and component")); err != nil {
		return nil, fmt.Errorf("creating errors.total: %w", err)
	}
	return &m, nil
}

// SessionStarted marks a session as open.
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, 1)
}

// SessionEnded marks a session closed with the given outcome.
func (m *Metrics) SessionEnded(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, -1)
	m.sessionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.sessionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// AudioReceived counts inbound audio bytes.
func (m *Metrics) AudioReceived(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.audioBytes.Add(ctx, int64(n))
}

// RecordStage records one pipeline stage execution.
func (m *Metrics) RecordStage(ctx context.Context, stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// TranscodeSlots adjusts the running-transcode gauge by delta.
func (m *Metrics) TranscodeSlots(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.transcodesRunning.Add(ctx, delta)
}

// RecordError counts an error by code and component.
func (m *Metrics) RecordError(ctx context.Context, code, component string) {
	if m == nil {
		return
	}
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("component", component),
	))
}
