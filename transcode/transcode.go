// Package transcode converts captured audio into a normalized container
// by running ffmpeg, with a global cap on concurrent processes.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	apperrors "github.com/kbukum/voxrelay/errors"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/observability"
	"github.com/kbukum/voxrelay/process"
	"github.com/kbukum/voxrelay/resilience"
)

// Format is an output container.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
)

var codecArgs = map[Format][]string{
	FormatWAV:  {"-c:a", "pcm_s16le", "-f", "wav"},
	FormatFLAC: {"-c:a", "flac", "-f", "flac"},
	FormatOGG:  {"-c:a", "libopus", "-f", "ogg"},
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// Transcoder runs ffmpeg conversions. It is safe for concurrent use; all
// sessions share its process slots.
type Transcoder struct {
	cfg      Config
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	log      *logger.Logger
}

// New creates a Transcoder. metrics may be nil.
func New(cfg Config, metrics *observability.Metrics, log *logger.Logger) *Transcoder {
	cfg.ApplyDefaults()
	t := &Transcoder{cfg: cfg, metrics: metrics, log: log.WithComponent("transcode")}
	t.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "transcode",
		MaxConcurrent: cfg.MaxConcurrent,
		MaxWait:       resilience.WaitForever,
		OnAcquire:     func(string) { t.metrics.TranscodeSlots(context.Background(), 1) },
		OnRelease:     func(string) { t.metrics.TranscodeSlots(context.Background(), -1) },
	})
	return t
}

// Args returns the ffmpeg argument list for one conversion.
func (t *Transcoder) Args(input, output string, format Format) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-ac", "1",
		"-ar", strconv.Itoa(t.cfg.SampleRate),
	}
	args = append(args, codecArgs[format]...)
	return append(args, output)
}

// Convert transcodes input into output and returns output's path.
//
// On success input is removed. A non-zero ffmpeg exit returns a
// TRANSCODE_ERROR carrying the exit code and leaves input on disk for
// inspection. Cancellation returns the context error and leaves cleanup
// to the caller. Callers queue while all slots are busy.
func (t *Transcoder) Convert(ctx context.Context, input, output string, format Format) (string, error) {
	if format == "" {
		format = t.cfg.Format
	}
	if _, ok := codecArgs[format]; !ok {
		return "", apperrors.InvalidInput("format", fmt.Sprintf("unsupported output format %q", format))
	}
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanTranscode)
	defer span.End()

	start := time.Now()
	result, err := resilience.ExecuteWithResult(t.bulkhead, ctx, func() (*process.Result, error) {
		return process.Run(ctx, process.Command{
			Binary:      t.cfg.FFmpegPath,
			Args:        t.Args(input, output, format),
			GracePeriod: t.cfg.GracePeriod,
		})
	})
	elapsed := time.Since(start)

	if err != nil {
		observability.SetSpanError(ctx, err)
		var exitErr *process.ExitError
		switch {
		case errors.As(err, &exitErr):
			appErr := apperrors.TranscodeFailed(exitErr.Code, exitErr.Stderr).WithDetail("input", input)
			t.metrics.RecordStage(ctx, observability.StageTranscode, "failed", elapsed)
			t.metrics.RecordError(ctx, string(appErr.Code), "transcode")
			t.log.WithContext(ctx).Error("Transcode failed, input kept for inspection",
				logger.DurationFields("transcode", elapsed),
				logger.Fields(logger.FieldPath, input, logger.FieldExitCode, exitErr.Code))
			return "", appErr
		case ctx.Err() != nil:
			t.metrics.RecordStage(ctx, observability.StageTranscode, "cancelled", elapsed)
			return "", ctx.Err()
		default:
			t.metrics.RecordStage(ctx, observability.StageTranscode, "failed", elapsed)
			t.metrics.RecordError(ctx, string(apperrors.ErrCodeInternal), "transcode")
			return "", apperrors.Internal(err).WithDetail("input", input)
		}
	}

	t.metrics.RecordStage(ctx, observability.StageTranscode, "ok", elapsed)
	if err := os.Remove(input); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.log.WithContext(ctx).Warn("Failed to remove transcode input", logger.MergeWithError(logger.Fields(logger.FieldPath, input), err))
	}
	t.log.WithContext(ctx).Debug("Transcoded",
		logger.DurationFields("transcode", elapsed),
		logger.Fields(logger.FieldPath, output, "ffmpeg_ms", result.Duration.Milliseconds()))
	return output, nil
}

// InUse returns the number of conversions currently running.
func (t *Transcoder) InUse() int { return t.bulkhead.InUse() }

// Format returns the configured default output format.
func (t *Transcoder) Format() Format { return t.cfg.Format }
