// Package openai summarizes transcripts with the OpenAI chat completion API.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	apperrors "github.com/kbukum/voxrelay/errors"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/observability"
	"github.com/kbukum/voxrelay/summarization"
)

// ProviderName is the registered name of this backend.
const ProviderName = "openai"

// Provider implements summarization.Provider.
type Provider struct {
	cfg    summarization.Config
	client *goopenai.Client
	log    *logger.Logger
}

var _ summarization.Provider = (*Provider)(nil)

// New creates a Provider. The client does not retry.
func New(cfg summarization.Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults()
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Provider{
		cfg:    cfg,
		client: goopenai.NewClientWithConfig(clientCfg),
		log:    log.WithComponent("openai"),
	}
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether credentials are configured. It does not
// call the API.
func (p *Provider) IsAvailable(ctx context.Context) bool { return p.cfg.APIKey != "" }

// Summarize makes one chat completion call.
func (p *Provider) Summarize(ctx context.Context, text string) (*summarization.Summary, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanSummarization)
	defer span.End()

	req := goopenai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: p.cfg.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: text},
		},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		observability.SetSpanError(ctx, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		appErr := apperrors.SummarizationFailed(err)
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			appErr.WithDetail("status", apiErr.HTTPStatusCode)
		}
		return nil, appErr
	}
	if len(resp.Choices) == 0 {
		err := errors.New("response has no choices")
		observability.SetSpanError(ctx, err)
		return nil, apperrors.SummarizationFailed(err)
	}

	p.log.WithContext(ctx).Debug("Summary generated",
		logger.DurationFields("summarize", time.Since(start)),
		logger.Fields(
			"model", resp.Model,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
		))
	return &summarization.Summary{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Model: resp.Model,
	}, nil
}
