package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/voxrelay/config"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/transcription"
)

func loadFromYAML(t *testing.T, body string) *Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SESSION_SPOOL_DIR", filepath.Join(dir, "spool"))
	cfg, err := loadConfig(config.WithConfigFile(path), config.WithEnvFile(filepath.Join(dir, "missing.env")))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadFromYAML(t, "environment: development\n")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	if cfg.Name != serviceName {
		t.Errorf("expected name %s, got %s", serviceName, cfg.Name)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("expected port 9001, got %d", cfg.Server.Port)
	}
	if cfg.Session.IdleTimeout != 60*time.Second || cfg.Session.SampleRate != 16000 || !cfg.Session.AckChunks {
		t.Errorf("unexpected session defaults %+v", cfg.Session)
	}
	if cfg.Transcription.Mode != transcription.ModeBatch || cfg.Transcription.MaxAttempts != 1 {
		t.Errorf("unexpected transcription defaults %+v", cfg.Transcription)
	}
	if cfg.Whisper.URL != "http://localhost:8387" || cfg.Whisper.Timeout != 120*time.Second {
		t.Errorf("unexpected whisper defaults %+v", cfg.Whisper)
	}
	if cfg.Summarization.Active() {
		t.Error("summarization should be inactive without a key")
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("SESSION_IDLE_TIMEOUT", "90s")
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("TRANSCRIPTION_MODE", "relay")
	t.Setenv("SUMMARIZATION_ENABLED", "true")
	t.Setenv("SUMMARIZATION_API_KEY", "sk-test")
	t.Setenv("TRANSCODE_MAX_CONCURRENT", "2")

	cfg := loadFromYAML(t, "session:\n  idle_timeout: 30s\n")
	if cfg.Session.IdleTimeout != 90*time.Second {
		t.Errorf("environment should win over the file, got %s", cfg.Session.IdleTimeout)
	}
	if cfg.Server.Port != 9100 || cfg.Transcode.MaxConcurrent != 2 {
		t.Errorf("unexpected overrides port=%d max_concurrent=%d", cfg.Server.Port, cfg.Transcode.MaxConcurrent)
	}
	if cfg.Transcription.Mode != transcription.ModeRelay {
		t.Errorf("expected relay mode, got %s", cfg.Transcription.Mode)
	}
	if !cfg.Summarization.Active() {
		t.Error("expected summarization to be active")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadConfigWhisperFallbacks(t *testing.T) {
	cfg := loadFromYAML(t, `
transcription:
  language: de
  selection: round_robin
whisper_fallbacks:
  - url: http://gpu2:8387
  - name: gpu3
    url: http://gpu3:8387
    language: en
`)
	if len(cfg.WhisperFallbacks) != 2 {
		t.Fatalf("expected two fallbacks, got %+v", cfg.WhisperFallbacks)
	}
	if fb := cfg.WhisperFallbacks[0]; fb.Name != "whisper-1" || fb.Language != "de" || fb.Model != "base" {
		t.Errorf("unexpected defaulted fallback %+v", fb)
	}
	if fb := cfg.WhisperFallbacks[1]; fb.Name != "gpu3" || fb.Language != "en" {
		t.Errorf("unexpected named fallback %+v", fb)
	}
	if cfg.Whisper.Language != "de" {
		t.Errorf("expected the primary backend to inherit the language, got %q", cfg.Whisper.Language)
	}

	manager, err := newWhisperManager(cfg, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("newWhisperManager: %v", err)
	}
	for _, name := range []string{"whisper", "whisper-1", "gpu3"} {
		if _, err := manager.GetByName(name); err != nil {
			t.Errorf("backend %s missing: %v", name, err)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown mode", func(c *Config) { c.Transcription.Mode = "live" }, "transcription.mode"},
		{"sample rate below range", func(c *Config) { c.Session.SampleRate = 100 }, "session.sample_rate"},
		{"missing whisper url", func(c *Config) { c.Whisper.URL = "" }, "whisper.url: is required"},
		{"missing relay url", func(c *Config) {
			c.Transcription.Mode = transcription.ModeRelay
			c.Relay.URL = ""
		}, "relay.url: is required"},
		{"duplicate fallback", func(c *Config) {
			c.WhisperFallbacks = append(c.WhisperFallbacks, c.Whisper)
		}, "whisper_fallbacks[0].name: must be unique"},
		{"s3 without bucket", func(c *Config) {
			c.Storage.Enabled = true
			c.Storage.Provider = "s3"
		}, "bucket is required"},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "config.environment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadFromYAML(t, "name: voxrelay\n")
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
