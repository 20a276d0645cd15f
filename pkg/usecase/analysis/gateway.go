package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/edgarchat/pkg/adapter"
	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultTimeout     = 60 * time.Second
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxAttempts = 3

	analyzeMaxTokens = 1000
	summaryMaxTokens = 300
	answerMaxTokens  = 500

	analyzeTemperature = 0.3
	summaryTemperature = 0.3
	answerTemperature  = 0.2
)

// Gateway builds prompts for filing excerpts and calls the language model.
// Only Analyze retries; Summarize and Answer fail on the first error.
type Gateway struct {
	completer   adapter.Completer
	timeout     time.Duration
	baseDelay   time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

type Option func(*Gateway)

// WithTimeout sets the deadline of each model call attempt
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRetry sets the base delay and total attempts of Analyze
func WithRetry(baseDelay time.Duration, maxAttempts int) Option {
	return func(g *Gateway) {
		if baseDelay > 0 {
			g.baseDelay = baseDelay
		}
		if maxAttempts > 0 {
			g.maxAttempts = maxAttempts
		}
	}
}

// WithSleep replaces the wait between attempts
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) {
		g.sleep = fn
	}
}

func New(completer adapter.Completer, opts ...Option) *Gateway {
	g := &Gateway{
		completer:   completer,
		timeout:     DefaultTimeout,
		baseDelay:   DefaultBaseDelay,
		maxAttempts: DefaultMaxAttempts,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Model returns the model identifier of the underlying completer
func (g *Gateway) Model() string {
	return g.completer.Model()
}

func (g *Gateway) complete(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.completer.Complete(ctx, req)
}

// delay returns how long to wait after a failed attempt, or false when the
// failure cannot be retried.
func (g *Gateway) delay(err error, attempt int) (time.Duration, bool) {
	switch {
	case errors.Is(err, adapter.ErrRejected):
		return 0, false
	case errors.Is(err, context.Canceled):
		return 0, false
	case errors.Is(err, adapter.ErrRateLimited):
		return g.baseDelay * time.Duration(1<<attempt), true
	default:
		return g.baseDelay, true
	}
}

// Analyze runs one analysis of kind over the excerpt. It never fails: when
// every attempt errors, a FailedAnalysis with a local fallback is returned.
func (g *Gateway) Analyze(ctx context.Context, excerpt *model.Excerpt, kind model.AnalysisKind) model.AnalysisResult {
	if err := kind.Validate(); err != nil {
		kind = model.AnalysisComprehensive
	}
	logger := logging.From(ctx)

	prompt, schema, err := buildAnalyzePrompt(excerpt, kind)
	if err != nil {
		return g.failed(ctx, excerpt, kind, err)
	}

	req := &adapter.CompletionRequest{
		System:      systemAnalyst,
		Prompt:      prompt,
		MaxTokens:   analyzeMaxTokens,
		Temperature: analyzeTemperature,
		Schema:      schema,
	}

	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		text, err := g.complete(ctx, req)
		if err == nil {
			return ParseAnalysis(text, kind, g.completer.Model())
		}
		lastErr = err

		wait, retryable := g.delay(err, attempt)
		if !retryable || attempt == g.maxAttempts-1 {
			break
		}

		logger.Warn("model call failed, retrying",
			"attempt", attempt+1,
			"wait", wait,
			"error", err,
		)
		if err := g.sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}

	return g.failed(ctx, excerpt, kind, lastErr)
}

func (g *Gateway) failed(ctx context.Context, excerpt *model.Excerpt, kind model.AnalysisKind, err error) *model.FailedAnalysis {
	logging.From(ctx).Error("analysis failed, using local fallback", "kind", kind, "error", err)
	return &model.FailedAnalysis{
		AnalysisKind: kind,
		Error:        err.Error(),
		Fallback:     Fallback(excerpt, kind),
	}
}

// Summarize produces a short executive summary of the excerpt
func (g *Gateway) Summarize(ctx context.Context, excerpt *model.Excerpt) (string, error) {
	prompt, err := render(summaryPromptTmpl, map[string]any{
		"Content": excerpt.Truncate(BudgetSummary),
	})
	if err != nil {
		return "", err
	}

	text, err := g.complete(ctx, &adapter.CompletionRequest{
		System:      systemSummary,
		Prompt:      prompt,
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to summarize filing", goerr.V("model", g.completer.Model()))
	}
	return text, nil
}

// Answer responds to question using only the excerpt
func (g *Gateway) Answer(ctx context.Context, excerpt *model.Excerpt, question string) (string, error) {
	prompt, err := render(answerPromptTmpl, map[string]any{
		"Question": question,
		"Content":  excerpt.Truncate(BudgetAnswer),
	})
	if err != nil {
		return "", err
	}

	text, err := g.complete(ctx, &adapter.CompletionRequest{
		System:      systemQuestion,
		Prompt:      prompt,
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemperature,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to answer question",
			goerr.V("model", g.completer.Model()),
			goerr.V("question", question),
		)
	}
	return text, nil
}
