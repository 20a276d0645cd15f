package adapter

import (
	"context"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrRateLimited is returned when the provider answers HTTP 429
	ErrRateLimited = goerr.New("model provider rate limit exceeded")
	// ErrRejected is returned for 4xx responses other than 429. Retrying the
	// same request cannot succeed.
	ErrRejected = goerr.New("model provider rejected request")
	// ErrEmptyCompletion is returned when the provider answers without text
	ErrEmptyCompletion = goerr.New("model returned no text")
)

// CompletionRequest is one single-turn chat completion
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// Schema asks the provider for JSON output of this shape when it supports
	// structured output. Providers without support ignore it.
	Schema *jsonschema.Schema
}

// Completer is the language model collaborator
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
	Model() string
}

// classifyStatus wraps an HTTP status into the sentinel errors used by retry
// decisions. It returns nil for 2xx.
func classifyStatus(status int, body string, vals ...goerr.Option) error {
	opts := append([]goerr.Option{goerr.V("status", status), goerr.V("body", body)}, vals...)
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return goerr.Wrap(ErrRateLimited, "rate limited", opts...)
	case status >= 400 && status < 500:
		return goerr.Wrap(ErrRejected, "request rejected", opts...)
	default:
		return goerr.New("model provider error", opts...)
	}
}
