package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/edgarchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel = "deepseek/deepseek-chat-v3.1:free"
	DefaultModelTimeout    = 60 * time.Second

	openRouterTitle   = "SEC Filing Chatbot"
	openRouterReferer = "https://github.com/m-mizutani/edgarchat"
)

// OpenRouter calls an OpenAI compatible chat completions endpoint
type OpenRouter struct {
	apiKey     string
	model      string
	baseURL    string
	referer    string
	httpClient *http.Client
}

var _ Completer = (*OpenRouter)(nil)

type OpenRouterOption func(*OpenRouter)

func WithOpenRouterModel(model string) OpenRouterOption {
	return func(o *OpenRouter) {
		if model != "" {
			o.model = model
		}
	}
}

func WithOpenRouterBaseURL(baseURL string) OpenRouterOption {
	return func(o *OpenRouter) {
		if baseURL != "" {
			o.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithOpenRouterHTTPClient(client *http.Client) OpenRouterOption {
	return func(o *OpenRouter) {
		o.httpClient = client
	}
}

func WithOpenRouterReferer(referer string) OpenRouterOption {
	return func(o *OpenRouter) {
		o.referer = referer
	}
}

func NewOpenRouter(apiKey string, opts ...OpenRouterOption) (*OpenRouter, error) {
	if apiKey == "" {
		return nil, goerr.New("OpenRouter API key is required")
	}

	o := &OpenRouter{
		apiKey:     apiKey,
		model:      DefaultOpenRouterModel,
		baseURL:    DefaultOpenRouterURL,
		referer:    openRouterReferer,
		httpClient: &http.Client{Timeout: DefaultModelTimeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *OpenRouter) Model() string { return o.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string `json:"name"`
	Strict bool   `json:"strict"`
	Schema any    `json:"schema"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

func (o *OpenRouter) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	body := chatRequest{
		Model:       o.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	if req.Schema != nil {
		body.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaFormat{Name: "filing_analysis", Schema: req.Schema},
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create completion request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", o.referer)
	httpReq.Header.Set("X-Title", openRouterTitle)

	logger := logging.From(ctx)
	start := time.Now()
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", goerr.Wrap(err, "failed to send completion request", goerr.V("model", o.model))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", goerr.Wrap(err, "failed to read completion response")
	}
	logger.Debug("completion response",
		"model", o.model,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	if err := classifyStatus(resp.StatusCode, string(respBody), goerr.V("model", o.model)); err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", goerr.Wrap(err, "failed to decode completion response", goerr.V("body", string(respBody)))
	}
	if parsed.Error != nil {
		return "", goerr.New("completion error", goerr.V("message", parsed.Error.Message), goerr.V("code", parsed.Error.Code))
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", goerr.Wrap(ErrEmptyCompletion, "no choices in completion response", goerr.V("model", o.model))
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
