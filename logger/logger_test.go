package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func jsonLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return newLogger(&Config{Level: level, Format: FormatJSON}, "voxrelay", &buf), &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return m
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		emit    func(*Logger)
		written bool
	}{
		{"info", func(l *Logger) { l.Debug("chunk buffered") }, false},
		{"info", func(l *Logger) { l.Info("session started") }, true},
		{"debug", func(l *Logger) { l.Debug("chunk buffered") }, true},
		{"error", func(l *Logger) { l.Warn("slow upstream") }, false},
		{"error", func(l *Logger) { l.Error("upstream lost") }, true},
		{"bogus", func(l *Logger) { l.Info("falls back to info") }, true},
	}
	t.Cleanup(func() { newLogger(&Config{Level: "info"}, "", &bytes.Buffer{}) })
	for _, tt := range tests {
		l, buf := jsonLogger(t, tt.level)
		tt.emit(l)
		if got := buf.Len() > 0; got != tt.written {
			t.Errorf("level %s: written = %v, want %v (%q)", tt.level, got, tt.written, buf.String())
		}
	}
}

func TestJSONLineCarriesServiceAndFields(t *testing.T) {
	l, buf := jsonLogger(t, "info")
	l.WithComponent("session").Info("Capture finalized",
		DurationFields("finalize", 1500*time.Millisecond),
		Fields(FieldBytes, 4096))

	m := lastLine(t, buf)
	want := map[string]interface{}{
		"service":      "voxrelay",
		FieldComponent: "session",
		FieldOperation: "finalize",
		FieldDuration:  float64(1500),
		FieldBytes:     float64(4096),
		"message":      "Capture finalized",
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("%s = %v, want %v", k, m[k], v)
		}
	}
}

func TestWithContextAddsIDs(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		session interface{}
		request interface{}
	}{
		{"none", context.Background(), nil, nil},
		{"session", ContextWithSessionID(context.Background(), "c1-1"), "c1-1", nil},
		{"both", ContextWithRequestID(ContextWithSessionID(context.Background(), "c1-2"), "req-9"), "c1-2", "req-9"},
		{"empty session ignored", ContextWithSessionID(context.Background(), ""), nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := jsonLogger(t, "info")
			l.WithContext(tt.ctx).Info("state changed")
			m := lastLine(t, buf)
			if m[FieldSessionID] != tt.session {
				t.Errorf("session_id = %v, want %v", m[FieldSessionID], tt.session)
			}
			if m[FieldRequestID] != tt.request {
				t.Errorf("request_id = %v, want %v", m[FieldRequestID], tt.request)
			}
		})
	}
}

func TestWithFieldsIsSticky(t *testing.T) {
	l, buf := jsonLogger(t, "info")
	conn := l.WithFields(Fields(FieldConnectionID, "c7"))
	conn.Info("first")
	conn.Warn("second")
	if m := lastLine(t, buf); m[FieldConnectionID] != "c7" || m["level"] != "warn" {
		t.Errorf("unexpected line %v", m)
	}
	l.Info("parent")
	if m := lastLine(t, buf); m[FieldConnectionID] != nil {
		t.Errorf("parent logger picked up derived field: %v", m)
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&Config{Level: "info", Format: "pretty", NoColor: true}, "voxrelay", &buf)
	l.Warn("Pending limit reached", Fields(FieldBytes, 10))
	out := buf.String()
	for _, want := range []string{"[VOX]", "[WRN]", "Pending limit reached", "bytes:10"} {
		if !strings.Contains(out, want) {
			t.Errorf("console line %q missing %q", out, want)
		}
	}
}

func TestInitReplacesGlobal(t *testing.T) {
	prev := global
	t.Cleanup(func() { global = prev })

	global = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected a default global logger")
	}
	Init(Config{Level: "warn", Format: FormatJSON, Output: "stderr"})
	if global == nil || global.service != "default" {
		t.Fatalf("Init did not install a global logger: %+v", global)
	}
	Init(Config{})
}

func TestConfigApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Level != "info" || c.Format != FormatConsole || c.Output != "stdout" {
		t.Errorf("unexpected defaults %+v", c)
	}
	c = Config{Level: "debug", Format: FormatJSON, Output: "stderr"}
	c.ApplyDefaults()
	if c.Level != "debug" || c.Format != FormatJSON || c.Output != "stderr" {
		t.Errorf("defaults overwrote explicit values: %+v", c)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"console", Config{Level: "info", Format: "console", Output: "stdout"}, false},
		{"json upper case", Config{Level: "DEBUG", Format: "JSON", Output: "stderr"}, false},
		{"bad level", Config{Level: "verbose", Format: "json", Output: "stdout"}, true},
		{"bad format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"bad output", Config{Level: "info", Format: "json", Output: "/var/log/x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name string
		kvs  []interface{}
		want map[string]interface{}
	}{
		{"empty", nil, map[string]interface{}{}},
		{"pairs", []interface{}{FieldState, "capturing", FieldBytes, 64}, map[string]interface{}{FieldState: "capturing", FieldBytes: 64}},
		{"odd trailing key dropped", []interface{}{FieldPath, "/tmp/a.webm", "dangling"}, map[string]interface{}{FieldPath: "/tmp/a.webm"}},
		{"non-string key skipped", []interface{}{42, "x", FieldStatus, 200}, map[string]interface{}{FieldStatus: 200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fields(tt.kvs...)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestStageFieldHelpers(t *testing.T) {
	d := DurationFields("transcode", 250*time.Millisecond)
	if d[FieldOperation] != "transcode" || d[FieldDuration] != int64(250) {
		t.Errorf("DurationFields = %v", d)
	}

	e := ErrorFields("upgrade", errors.New("bad handshake"))
	if e[FieldOperation] != "upgrade" || e[FieldError] != "bad handshake" {
		t.Errorf("ErrorFields = %v", e)
	}

	m := MergeWithError(Fields(FieldPath, "in.webm"), errors.New("exit status 1"))
	if m[FieldPath] != "in.webm" || m[FieldError] != "exit status 1" {
		t.Errorf("MergeWithError = %v", m)
	}
	if n := MergeWithError(nil, errors.New("boom")); n[FieldError] != "boom" {
		t.Errorf("MergeWithError(nil) = %v", n)
	}
}
