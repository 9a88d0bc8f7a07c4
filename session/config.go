package session

import (
	"fmt"
	"os"
	"time"
)

// Config holds per-session settings.
type Config struct {
	// SpoolDir holds spool files and transcoder output. Empty means the OS temp dir.
	SpoolDir string `yaml:"spool_dir" mapstructure:"spool_dir"`
	// SampleRate is the rate of envelope PCM and of the WAV header written for it.
	SampleRate int `yaml:"sample_rate" mapstructure:"sample_rate" validate:"min=8000,max=192000"`
	// IdleTimeout ends a session that receives no frame while idle or capturing.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	// AckChunks sends audio-received after every chunk.
	AckChunks bool `yaml:"ack_chunks" mapstructure:"ack_chunks"`
	// PendingLimit caps the bytes of next-turn frames held while a result is
	// being produced. Past it the connection is no longer read.
	PendingLimit int64 `yaml:"pending_limit" mapstructure:"pending_limit" validate:"min=0"`
	// ShutdownTimeout bounds how long Stop waits for live connections.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.SpoolDir == "" {
		c.SpoolDir = os.TempDir()
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.PendingLimit == 0 {
		c.PendingLimit = 4 << 20
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
}

// Validate checks the configuration and that the spool directory is usable.
func (c *Config) Validate() error {
	if c.IdleTimeout < 0 {
		return fmt.Errorf("session.idle_timeout must not be negative")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("session.sample_rate must be positive (got: %d)", c.SampleRate)
	}
	if err := os.MkdirAll(c.SpoolDir, 0o750); err != nil {
		return fmt.Errorf("session.spool_dir: %w", err)
	}
	return nil
}
