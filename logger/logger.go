package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a zerolog logger bound to a service name. Derived loggers
// share its output and level.
type Logger struct {
	zl      zerolog.Logger
	service string
}

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	requestIDKey
)

var global *Logger

// Init replaces the process-wide logger and level from cfg. bootstrap
// calls it once before any component is built.
func Init(cfg Config) {
	cfg.ApplyDefaults()
	global = New(&cfg, "default")
}

// GetGlobalLogger returns the logger set by Init, or a console logger
// when Init was never called.
func GetGlobalLogger() *Logger {
	if global == nil {
		global = NewDefault("default")
	}
	return global
}

// New builds a logger writing to cfg.Output. An unknown level falls back
// to info.
func New(cfg *Config, service string) *Logger {
	return newLogger(cfg, service, outputWriter(cfg.Output))
}

// NewDefault returns an info-level console logger, the one tests and
// tools use when no config is loaded.
func NewDefault(service string) *Logger {
	return New(&Config{Level: "info", Format: FormatConsole, Output: "stdout"}, service)
}

func newLogger(cfg *Config, service string, w io.Writer) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var zl zerolog.Logger
	if cfg.console() {
		zl = zerolog.New(consoleWriter(w, cfg.NoColor, service))
	} else {
		zl = zerolog.New(w).With().Str("service", service).Logger()
	}
	zc := zl.With().Timestamp()
	if cfg.Caller {
		zc = zc.Caller()
	}
	return &Logger{zl: zc.Logger(), service: service}
}

// ContextWithSessionID tags ctx so WithContext adds session_id.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// ContextWithRequestID tags ctx so WithContext adds request_id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithContext returns a logger carrying the session and request ids
// stored in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	zc := l.zl.With()
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		zc = zc.Str(FieldSessionID, id)
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		zc = zc.Str(FieldRequestID, id)
	}
	return &Logger{zl: zc.Logger(), service: l.service}
}

// WithComponent tags every line with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{zl: l.zl.With().Str(FieldComponent, name).Logger(), service: l.service}
}

// WithFields returns a logger that adds fields to every line.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger(), service: l.service}
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	emit(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	emit(l.zl.Error(), msg, fields)
}

func emit(event *zerolog.Event, msg string, fields []map[string]interface{}) {
	for _, f := range fields {
		event.Fields(f)
	}
	event.Msg(msg)
}

func outputWriter(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

var levelTags = map[string]struct{ tag, color string }{
	"trace": {"TRC", "\033[90m"},
	"debug": {"DBG", "\033[36m"},
	"info":  {"INF", "\033[32m"},
	"warn":  {"WRN", "\033[33m"},
	"error": {"ERR", "\033[31m"},
	"fatal": {"FTL", "\033[35m"},
}

const colorReset = "\033[0m"

// consoleWriter renders "15:04:05 [VOX][INF] message key:value". The
// service tag is the first three letters of the service name.
func consoleWriter(w io.Writer, noColor bool, service string) zerolog.ConsoleWriter {
	paint := func(color, s string) string {
		if noColor {
			return s
		}
		return color + s + colorReset
	}
	prefix := ""
	if service != "" && service != "default" && len(service) >= 3 {
		prefix = paint("\033[34m", "["+strings.ToUpper(service[:3])+"]")
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
		FormatLevel: func(i interface{}) string {
			name := fmt.Sprint(i)
			lt, ok := levelTags[name]
			if !ok {
				return prefix + "[" + strings.ToUpper(name) + "]"
			}
			return prefix + paint(lt.color, "["+lt.tag+"]")
		},
		FormatFieldName: func(i interface{}) string { return fmt.Sprint(i) + ":" },
		FormatFieldValue: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprint(i)
		},
	}
}
