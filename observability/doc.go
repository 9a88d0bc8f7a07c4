// Package observability wires OpenTelemetry tracing and metrics.
//
// Spans cover each pipeline stage of a capture session and Metrics
// counts sessions, audio volume, stage latency and errors:
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanTranscode)
//	defer span.End()
//	metrics.RecordStage(ctx, observability.StageTranscode, "ok", elapsed)
//
// Component installs OTLP/HTTP exporters at startup when enabled.
package observability
