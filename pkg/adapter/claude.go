package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
)

const DefaultClaudeModel = "claude-sonnet-4-5"

// ClaudeCompleter implements Completer with the Anthropic Messages API
type ClaudeCompleter struct {
	client *anthropic.Client
	model  string
}

var _ Completer = (*ClaudeCompleter)(nil)

type ClaudeOption func(*claudeConfig)

type claudeConfig struct {
	model   string
	baseURL string
}

func WithClaudeModel(model string) ClaudeOption {
	return func(c *claudeConfig) {
		if model != "" {
			c.model = model
		}
	}
}

func WithClaudeBaseURL(baseURL string) ClaudeOption {
	return func(c *claudeConfig) {
		c.baseURL = baseURL
	}
}

// NewClaude creates a Claude completer. SDK level retries are disabled; the
// analysis gateway owns the retry policy.
func NewClaude(apiKey string, opts ...ClaudeOption) (*ClaudeCompleter, error) {
	if apiKey == "" {
		return nil, goerr.New("anthropic API key is required")
	}

	cfg := &claudeConfig{model: DefaultClaudeModel}
	for _, opt := range opts {
		opt(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	client := anthropic.NewClient(reqOpts...)
	return &ClaudeCompleter{client: &client, model: cfg.model}, nil
}

func (c *ClaudeCompleter) Model() string { return c.model }

func (c *ClaudeCompleter) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			if classified := classifyStatus(apiErr.StatusCode, apiErr.Error(), goerr.V("model", c.model)); classified != nil {
				return "", classified
			}
		}
		return "", goerr.Wrap(err, "failed to create message", goerr.V("model", c.model))
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", goerr.Wrap(ErrEmptyCompletion, "claude returned no text", goerr.V("model", c.model))
	}
	return text, nil
}
