// Package summarization condenses a final transcript with an LLM backend.
// Summaries are best-effort: callers log failures and carry on.
package summarization

import (
	"context"
	"time"

	"github.com/kbukum/voxrelay/provider"
)

// Summary is the result of one summarization call.
type Summary struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// Provider is a summarization backend. Implementations make exactly one
// attempt per call.
type Provider interface {
	provider.Provider

	Summarize(ctx context.Context, text string) (*Summary, error)
}

// DefaultSystemPrompt instructs the model when no prompt is configured.
const DefaultSystemPrompt = "Summarize the following meeting transcript in a few short bullet points. " +
	"Answer in the language of the transcript."

// Config configures the summarization backend.
type Config struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	// BaseURL overrides the API endpoint for compatible servers.
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	Model        string        `yaml:"model" mapstructure:"model"`
	SystemPrompt string        `yaml:"system_prompt" mapstructure:"system_prompt"`
	Temperature  float32       `yaml:"temperature" mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens    int           `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=0"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// Active reports whether a summarizer should be built.
func (c *Config) Active() bool {
	return c.Enabled && c.APIKey != ""
}
