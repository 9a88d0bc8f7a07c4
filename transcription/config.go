package transcription

import (
	"fmt"
	"time"

	"github.com/kbukum/voxrelay/provider"
)

// Config configures the transcription gateway. Backend endpoints are
// configured on the backend packages.
type Config struct {
	Mode Mode `yaml:"mode" mapstructure:"mode"`
	// Language hints the expected language to batch backends.
	Language string `yaml:"language" mapstructure:"language"`
	// FinalTimeout bounds the wait for a streaming final after audio-end.
	FinalTimeout time.Duration `yaml:"final_timeout" mapstructure:"final_timeout"`
	// MaxAttempts counts the first batch call. One disables retrying.
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	// Selection picks among batch backends: priority, round_robin or health.
	Selection string `yaml:"selection" mapstructure:"selection"`
	// BreakerFailures consecutive backend failures open the circuit.
	BreakerFailures int           `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset" mapstructure:"breaker_reset"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeBatch
	}
	if c.FinalTimeout == 0 {
		c.FinalTimeout = 30 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 1
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.Selection == "" {
		c.Selection = provider.StrategyPriority
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerReset == 0 {
		c.BreakerReset = 30 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeBatch, ModeStream, ModeRelay:
	default:
		return fmt.Errorf("transcription.mode must be one of batch, stream, relay (got: %s)", c.Mode)
	}
	switch c.Selection {
	case provider.StrategyPriority, provider.StrategyRoundRobin, provider.StrategyHealth:
	default:
		return fmt.Errorf("transcription.selection must be one of priority, round_robin, health (got: %s)", c.Selection)
	}
	if c.FinalTimeout <= 0 {
		return fmt.Errorf("transcription.final_timeout must be positive")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("transcription.max_attempts must be at least 1 (got: %d)", c.MaxAttempts)
	}
	return nil
}
