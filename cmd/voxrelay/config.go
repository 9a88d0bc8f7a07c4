package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/voxrelay/config"
	"github.com/kbukum/voxrelay/observability"
	"github.com/kbukum/voxrelay/relay"
	"github.com/kbukum/voxrelay/server"
	"github.com/kbukum/voxrelay/session"
	"github.com/kbukum/voxrelay/storage"
	"github.com/kbukum/voxrelay/summarization"
	"github.com/kbukum/voxrelay/transcode"
	"github.com/kbukum/voxrelay/transcription"
	"github.com/kbukum/voxrelay/transcription/whisper"
	"github.com/kbukum/voxrelay/transcription/wsstream"
	"github.com/kbukum/voxrelay/validation"
	"github.com/kbukum/voxrelay/version"
)

const serviceName = "voxrelay"

// Config is the relay's full configuration.
type Config struct {
	config.ServiceConfig `mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Session       session.Config       `yaml:"session" mapstructure:"session"`
	Transcode     transcode.Config     `yaml:"transcode" mapstructure:"transcode"`
	Transcription transcription.Config `yaml:"transcription" mapstructure:"transcription"`
	// Whisper is the primary batch backend.
	Whisper whisper.Config `yaml:"whisper" mapstructure:"whisper"`
	// WhisperFallbacks are further batch backends, chosen per
	// transcription.selection.
	WhisperFallbacks []whisper.Config     `yaml:"whisper_fallbacks" mapstructure:"whisper_fallbacks"`
	Stream           wsstream.Config      `yaml:"stream" mapstructure:"stream"`
	Relay            relay.FeedConfig     `yaml:"relay" mapstructure:"relay"`
	Summarization    summarization.Config `yaml:"summarization" mapstructure:"summarization"`
	Storage          storage.Config       `yaml:"storage" mapstructure:"storage"`
	Observability    observability.Config `yaml:"observability" mapstructure:"observability"`
}

// defaults seeds every key that may be set from the environment.
func defaults() map[string]any {
	return map[string]any{
		"name":           serviceName,
		"environment":    "development",
		"version":        version.Version,
		"logging.level":  "info",
		"logging.format": "console",

		"server.host":                   "0.0.0.0",
		"server.port":                   9001,
		"server.read_timeout":           15,
		"server.write_timeout":          15,
		"server.idle_timeout":           60,
		"server.shutdown_timeout":       5,
		"server.max_body_size":          "1MB",
		"server.cors.allowed_origins":   []string{"*"},
		"server.connections_per_minute": 0,

		"session.spool_dir":        "",
		"session.sample_rate":      16000,
		"session.idle_timeout":     60 * time.Second,
		"session.ack_chunks":       true,
		"session.pending_limit":    4 << 20,
		"session.shutdown_timeout": 15 * time.Second,

		"transcode.ffmpeg_path":    "ffmpeg",
		"transcode.format":         string(transcode.FormatWAV),
		"transcode.sample_rate":    16000,
		"transcode.max_concurrent": 4,
		"transcode.timeout":        2 * time.Minute,

		"transcription.mode":          string(transcription.ModeBatch),
		"transcription.language":      "",
		"transcription.final_timeout": 30 * time.Second,
		"transcription.max_attempts":  1,
		"transcription.selection":     "priority",

		"whisper.name":    whisper.ProviderName,
		"whisper.url":     "http://localhost:8387",
		"whisper.model":   "base",
		"whisper.timeout": 120 * time.Second,

		"stream.url": "ws://127.0.0.1:8765/",
		"relay.url":  "ws://127.0.0.1:8765/",

		"summarization.enabled":  false,
		"summarization.api_key":  "",
		"summarization.base_url": "",
		"summarization.model":    "gpt-4o-mini",

		"storage.enabled":    false,
		"storage.provider":   storage.ProviderLocal,
		"storage.base_path":  storage.DefaultBasePath,
		"storage.bucket":     "",
		"storage.region":     storage.DefaultRegion,
		"storage.endpoint":   "",
		"storage.access_key": "",
		"storage.secret_key": "",

		"observability.enabled":     false,
		"observability.endpoint":    "localhost:4318",
		"observability.insecure":    true,
		"observability.sample_rate": 1.0,
	}
}

// loadConfig reads config.yml, .env and the environment over defaults.
func loadConfig(opts ...config.Option) (*Config, error) {
	cfg := &Config{}
	opts = append([]config.Option{config.WithDefaults(defaults())}, opts...)
	if _, err := config.Load(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Version == "" {
		c.Version = version.Version
	}
	c.Server.ApplyDefaults()
	c.Session.ApplyDefaults()
	c.Transcode.ApplyDefaults()
	c.Transcription.ApplyDefaults()
	c.Whisper.ApplyDefaults()
	if c.Whisper.Language == "" {
		c.Whisper.Language = c.Transcription.Language
	}
	for i := range c.WhisperFallbacks {
		fb := &c.WhisperFallbacks[i]
		if fb.Name == "" {
			fb.Name = fmt.Sprintf("%s-%d", whisper.ProviderName, i+1)
		}
		if fb.Language == "" {
			fb.Language = c.Transcription.Language
		}
		fb.ApplyDefaults()
	}
	c.Stream.ApplyDefaults()
	c.Relay.ApplyDefaults()
	c.Summarization.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks each section, then the struct tags, then the rules
// that span sections.
func (c *Config) Validate() error {
	errs := []error{
		c.ServiceConfig.Validate(),
		c.Server.Validate(),
		c.Session.Validate(),
		c.Transcode.Validate(),
		c.Transcription.Validate(),
		c.Storage.Validate(),
		c.Observability.Validate(),
		validation.Validate(c),
	}

	v := validation.New()
	switch c.Transcription.Mode {
	case transcription.ModeBatch:
		v.Required("whisper.url", c.Whisper.URL)
		names := map[string]bool{c.Whisper.Name: true}
		for i, fb := range c.WhisperFallbacks {
			key := fmt.Sprintf("whisper_fallbacks[%d]", i)
			v.Required(key+".url", fb.URL)
			v.Custom(!names[fb.Name], key+".name", "must be unique")
			names[fb.Name] = true
		}
	case transcription.ModeStream:
		v.Required("stream.url", c.Stream.URL)
	case transcription.ModeRelay:
		v.Required("relay.url", c.Relay.URL)
	}
	v.Custom(c.Session.IdleTimeout > 0, "session.idle_timeout", "must be positive")
	errs = append(errs, v.Validate())
	return errors.Join(errs...)
}
