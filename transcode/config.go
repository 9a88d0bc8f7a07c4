package transcode

import (
	"fmt"
	"time"
)

// Config configures the ffmpeg invoker.
type Config struct {
	// FFmpegPath is the ffmpeg binary, looked up on PATH when not absolute.
	FFmpegPath string `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	// Format is the default output container.
	Format Format `yaml:"format" mapstructure:"format"`
	// SampleRate is the output sample rate in Hz.
	SampleRate int `yaml:"sample_rate" mapstructure:"sample_rate" validate:"min=8000,max=192000"`
	// MaxConcurrent caps simultaneous ffmpeg processes across all sessions.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"min=1"`
	// Timeout bounds one conversion, including time queued for a slot.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// GracePeriod is how long ffmpeg gets to exit after SIGTERM.
	GracePeriod time.Duration `yaml:"grace_period" mapstructure:"grace_period"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.Format == "" {
		c.Format = FormatWAV
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 4
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = 3 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, ok := codecArgs[c.Format]; !ok {
		return fmt.Errorf("transcode.format must be one of wav, flac, ogg (got: %s)", c.Format)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("transcode.max_concurrent must be at least 1 (got: %d)", c.MaxConcurrent)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("transcode.timeout must not be negative")
	}
	return nil
}
