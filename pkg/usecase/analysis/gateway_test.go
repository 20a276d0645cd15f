package analysis_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/edgarchat/pkg/adapter"
	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/usecase/analysis"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// mockCompleter is a mock implementation of adapter.Completer for testing
type mockCompleter struct {
	completeFunc func(ctx context.Context, req *adapter.CompletionRequest) (string, error)
	requests     []*adapter.CompletionRequest
}

func (m *mockCompleter) Complete(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
	m.requests = append(m.requests, req)
	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}
	return "", errors.New("not implemented")
}

func (m *mockCompleter) Model() string {
	return "mock-model"
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

var excerpt = &model.Excerpt{
	Text:     "Item 1A. Risk Factors\nCompetition is intense in every market we serve.",
	Sections: 1,
}

func TestAnalyzeRateLimitBackoff(t *testing.T) {
	mock := &mockCompleter{
		completeFunc: func(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
			return "", goerr.Wrap(adapter.ErrRateLimited, "rate limited", goerr.V("status", 429))
		},
	}
	rec := &sleepRecorder{}
	gw := analysis.New(mock, analysis.WithSleep(rec.sleep))

	result := gw.Analyze(context.Background(), excerpt, model.AnalysisComprehensive)

	gt.A(t, mock.requests).Length(3)
	gt.A(t, rec.waits).Length(2)
	gt.Equal(t, rec.waits[0], 2*time.Second)
	gt.Equal(t, rec.waits[1], 4*time.Second)

	failed, ok := result.(*model.FailedAnalysis)
	gt.V(t, ok).Equal(true)
	gt.Equal(t, failed.Format(), model.FormatError)
	gt.S(t, failed.Error).Contains("rate limit")
	gt.S(t, failed.Fallback).Contains("Fallback Mode")
	gt.S(t, failed.Fallback).Contains("Competition is intense")
}

func TestAnalyzeRejectedStopsImmediately(t *testing.T) {
	mock := &mockCompleter{
		completeFunc: func(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
			return "", goerr.Wrap(adapter.ErrRejected, "bad credential", goerr.V("status", 401))
		},
	}
	rec := &sleepRecorder{}
	gw := analysis.New(mock, analysis.WithSleep(rec.sleep))

	result := gw.Analyze(context.Background(), excerpt, model.AnalysisFinancial)
	gt.A(t, mock.requests).Length(1)
	gt.A(t, rec.waits).Length(0)
	gt.Equal(t, result.Format(), model.FormatError)
	gt.S(t, result.(*model.FailedAnalysis).Fallback).Contains("Basic analysis unavailable")
}

func TestAnalyzeTransientFailureUsesFixedDelay(t *testing.T) {
	calls := 0
	mock := &mockCompleter{
		completeFunc: func(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
			calls++
			if calls < 3 {
				return "", goerr.New("connection reset")
			}
			return "Apple designs phones.", nil
		},
	}
	rec := &sleepRecorder{}
	gw := analysis.New(mock,
		analysis.WithSleep(rec.sleep),
		analysis.WithRetry(time.Second, 3),
	)

	result := gw.Analyze(context.Background(), excerpt, model.AnalysisComprehensive)
	gt.Equal(t, calls, 3)
	gt.A(t, rec.waits).Length(2)
	gt.Equal(t, rec.waits[0], time.Second)
	gt.Equal(t, rec.waits[1], time.Second)

	raw, ok := result.(*model.RawAnalysis)
	gt.V(t, ok).Equal(true)
	gt.Equal(t, raw.Text, "Apple designs phones.")
	gt.Equal(t, raw.Model, "mock-model")
}

func TestAnalyzeCanceledWhileWaiting(t *testing.T) {
	mock := &mockCompleter{
		completeFunc: func(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
			return "", goerr.Wrap(adapter.ErrRateLimited, "rate limited")
		},
	}
	gw := analysis.New(mock, analysis.WithSleep(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}))

	result := gw.Analyze(context.Background(), excerpt, model.AnalysisComprehensive)
	gt.A(t, mock.requests).Length(1)
	gt.Equal(t, result.Format(), model.FormatError)
}

func TestAnalyzeRequest(t *testing.T) {
	long := &model.Excerpt{Text: strings.Repeat("a", 10000)}

	t.Run("comprehensive is plain text with 4000 chars", func(t *testing.T) {
		mock := &mockCompleter{
			completeFunc: func(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
				return "ok", nil
			},
		}
		analysis.New(mock).Analyze(context.Background(), long, model.AnalysisComprehensive)

		req := mock.requests[0]
		gt.V(t, req.Schema == nil).Equal(true)
		gt.Equal(t, req.MaxTokens, 1000)
		gt.Equal(t, req.Temperature, 0.3)
		gt.S(t, req.Prompt).Contains(strings.Repeat("a", 4000))
		gt.S(t, req.Prompt).NotContains(strings.Repeat("a", 4001))
		gt.S(t, req.System).Contains("financial analyst")
	})

	t.Run("risks asks for json with 6000 chars", func(t *testing.T) {
		mock := &mockCompleter{
			completeFunc: func(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
				return "ok", nil
			},
		}
		analysis.New(mock).Analyze(context.Background(), long, model.AnalysisRisks)

		req := mock.requests[0]
		gt.V(t, req.Schema != nil).Equal(true)
		gt.S(t, req.Prompt).Contains("risk factors")
		gt.S(t, req.Prompt).Contains(`"business_risks"`)
		gt.S(t, req.Prompt).Contains(strings.Repeat("a", 6000))
		gt.S(t, req.Prompt).NotContains(strings.Repeat("a", 6001))
	})

	t.Run("unknown kind falls back to comprehensive", func(t *testing.T) {
		mock := &mockCompleter{
			completeFunc: func(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
				return "ok", nil
			},
		}
		result := analysis.New(mock).Analyze(context.Background(), excerpt, model.AnalysisKind("poetry"))
		gt.Equal(t, result.Kind(), model.AnalysisComprehensive)
		gt.V(t, mock.requests[0].Schema == nil).Equal(true)
	})
}

func TestSummarizeAndAnswer(t *testing.T) {
	long := &model.Excerpt{Text: strings.Repeat("b", 10000)}

	t.Run("summary budget and parameters", func(t *testing.T) {
		mock := &mockCompleter{
			completeFunc: func(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
				return "short summary", nil
			},
		}
		text, err := analysis.New(mock).Summarize(context.Background(), long)
		gt.NoError(t, err)
		gt.Equal(t, text, "short summary")

		req := mock.requests[0]
		gt.Equal(t, req.MaxTokens, 300)
		gt.S(t, req.Prompt).Contains(strings.Repeat("b", 3000))
		gt.S(t, req.Prompt).NotContains(strings.Repeat("b", 3001))
	})

	t.Run("answer carries the question", func(t *testing.T) {
		mock := &mockCompleter{
			completeFunc: func(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
				return "Revenue was $383B.", nil
			},
		}
		text, err := analysis.New(mock).Answer(context.Background(), long, "What was revenue?")
		gt.NoError(t, err)
		gt.Equal(t, text, "Revenue was $383B.")

		req := mock.requests[0]
		gt.Equal(t, req.MaxTokens, 500)
		gt.Equal(t, req.Temperature, 0.2)
		gt.S(t, req.Prompt).Contains("What was revenue?")
		gt.S(t, req.Prompt).NotContains(strings.Repeat("b", 6001))
	})

	t.Run("no retry on rate limit", func(t *testing.T) {
		mock := &mockCompleter{
			completeFunc: func(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
				return "", goerr.Wrap(adapter.ErrRateLimited, "rate limited")
			},
		}
		rec := &sleepRecorder{}
		gw := analysis.New(mock, analysis.WithSleep(rec.sleep))

		_, err := gw.Summarize(context.Background(), excerpt)
		gt.Error(t, err)
		gt.V(t, errors.Is(err, adapter.ErrRateLimited)).Equal(true)

		_, err = gw.Answer(context.Background(), excerpt, "Why?")
		gt.Error(t, err)

		gt.A(t, mock.requests).Length(2)
		gt.A(t, rec.waits).Length(0)
	})
}

func TestAnalyzeTimeout(t *testing.T) {
	mock := &mockCompleter{
		completeFunc: func(ctx context.Context, req *adapter.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	gw := analysis.New(mock,
		analysis.WithTimeout(10*time.Millisecond),
		analysis.WithRetry(time.Millisecond, 2),
		analysis.WithSleep((&sleepRecorder{}).sleep),
	)

	result := gw.Analyze(context.Background(), excerpt, model.AnalysisComprehensive)
	gt.A(t, mock.requests).Length(2)
	gt.S(t, result.(*model.FailedAnalysis).Error).Contains("deadline exceeded")
}

func TestAnalyzeWithGemini(t *testing.T) {
	apiKey, ok := os.LookupEnv("TEST_GEMINI_API_KEY")
	if !ok {
		t.Skip("TEST_GEMINI_API_KEY is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, adapter.WithGeminiAPIKey(apiKey))
	gt.NoError(t, err)

	result := analysis.New(client).Analyze(ctx, &model.Excerpt{
		Text: "Item 7. Management Discussion and Analysis\nTotal net sales decreased 3% to $383.3 billion in 2023.",
	}, model.AnalysisFinancial)
	gt.V(t, result.Format() != model.FormatError).Equal(true)
}
