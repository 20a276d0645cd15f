package cli

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/edgarchat/pkg/adapter"
	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/usecase/analysis"
	"github.com/m-mizutani/edgarchat/pkg/usecase/chat"
	"github.com/m-mizutani/edgarchat/pkg/usecase/filing"
	"github.com/m-mizutani/edgarchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

const (
	providerOpenRouter = "openrouter"
	providerGemini     = "gemini"
	providerClaude     = "claude"

	// placeholderAPIKey is the sample value shipped in example env files
	placeholderAPIKey = "your_openrouter_api_key_here"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel string

	// Tuning file
	configPath string

	// EDGAR
	userAgent string
	edgarRate int64

	// Model
	provider         string
	model            string
	baseURL          string
	timeout          time.Duration
	openRouterAPIKey string
	geminiAPIKey     string
	geminiProject    string
	geminiLocation   string
	geminiThinking   int64
	anthropicAPIKey  string
}

// duration decodes Go duration strings such as "2s" from TOML
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return goerr.Wrap(err, "invalid duration", goerr.V("value", string(b)))
	}
	d.Duration = v
	return nil
}

// tuning is the optional TOML file given by --config
type tuning struct {
	Excerpt filing.ExcerptOptions `toml:"excerpt"`
	Retry   struct {
		BaseDelay   duration `toml:"base_delay"`
		MaxAttempts int      `toml:"max_attempts"`
	} `toml:"retry"`
	Session struct {
		Debounce *duration `toml:"debounce"`
	} `toml:"session"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "warn",
			Sources:     cli.EnvVars("EDGARCHAT_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to TOML tuning file",
			Sources:     cli.EnvVars("EDGARCHAT_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "user-agent",
			Usage:       "User-Agent sent to SEC EDGAR, must include a contact address",
			Value:       adapter.DefaultUserAgent,
			Sources:     cli.EnvVars("EDGARCHAT_USER_AGENT"),
			Destination: &cfg.userAgent,
		},
		&cli.IntFlag{
			Name:        "edgar-rate",
			Usage:       "Maximum EDGAR requests per second",
			Value:       adapter.DefaultEDGARRateLimit,
			Sources:     cli.EnvVars("EDGARCHAT_EDGAR_RATE"),
			Destination: &cfg.edgarRate,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "provider",
			Usage:       "Language model provider (openrouter, gemini, claude)",
			Value:       providerOpenRouter,
			Sources:     cli.EnvVars("EDGARCHAT_PROVIDER"),
			Destination: &cfg.provider,
		},
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "Model ID, provider default when empty",
			Sources:     cli.EnvVars("EDGARCHAT_MODEL"),
			Destination: &cfg.model,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Override the provider API base URL",
			Sources:     cli.EnvVars("EDGARCHAT_BASE_URL"),
			Destination: &cfg.baseURL,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Timeout of one model call",
			Value:       analysis.DefaultTimeout,
			Sources:     cli.EnvVars("EDGARCHAT_TIMEOUT"),
			Destination: &cfg.timeout,
		},
		&cli.StringFlag{
			Name:        "openrouter-api-key",
			Usage:       "OpenRouter API key, demo mode when empty",
			Sources:     cli.EnvVars("OPENROUTER_API_KEY"),
			Destination: &cfg.openRouterAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini on Vertex AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.IntFlag{
			Name:        "gemini-thinking-budget",
			Usage:       "Gemini thinking tokens reserved per call, 0 disables thinking",
			Sources:     cli.EnvVars("GEMINI_THINKING_BUDGET"),
			Destination: &cfg.geminiThinking,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
	}
}

// setupLogger installs the process logger and returns a context carrying it
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// loadTuning reads the TOML tuning file. No path means no overrides.
func (cfg *config) loadTuning() (*tuning, error) {
	var t tuning
	if cfg.configPath == "" {
		return &t, nil
	}

	raw, err := os.ReadFile(cfg.configPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configPath))
	}
	if err := toml.Unmarshal(raw, &t); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configPath))
	}
	return &t, nil
}

// demoMode reports whether no usable credential is configured for the
// selected provider
func (cfg *config) demoMode() bool {
	switch cfg.provider {
	case providerGemini:
		return cfg.geminiAPIKey == "" && cfg.geminiProject == ""
	case providerClaude:
		return cfg.anthropicAPIKey == ""
	default:
		key := strings.TrimSpace(cfg.openRouterAPIKey)
		return key == "" || key == placeholderAPIKey
	}
}

// newEDGAR creates a new EDGAR client instance
func (cfg *config) newEDGAR() (*adapter.EDGARClient, error) {
	if cfg.userAgent == "" {
		return nil, goerr.New("user-agent is required")
	}
	return adapter.NewEDGAR(
		adapter.WithUserAgent(cfg.userAgent),
		adapter.WithEDGARRateLimit(int(cfg.edgarRate)),
	), nil
}

// newCompleter creates the completer of the selected provider
func (cfg *config) newCompleter(ctx context.Context) (adapter.Completer, error) {
	switch cfg.provider {
	case providerOpenRouter:
		var opts []adapter.OpenRouterOption
		if cfg.model != "" {
			opts = append(opts, adapter.WithOpenRouterModel(cfg.model))
		}
		if cfg.baseURL != "" {
			opts = append(opts, adapter.WithOpenRouterBaseURL(cfg.baseURL))
		}
		return adapter.NewOpenRouter(cfg.openRouterAPIKey, opts...)

	case providerGemini:
		opts := []adapter.GeminiOption{
			adapter.WithGeminiThinkingBudget(int32(cfg.geminiThinking)),
		}
		if cfg.model != "" {
			opts = append(opts, adapter.WithGeminiModel(cfg.model))
		}
		if cfg.geminiAPIKey != "" {
			opts = append(opts, adapter.WithGeminiAPIKey(cfg.geminiAPIKey))
		} else {
			if cfg.geminiLocation == "" {
				return nil, goerr.New("gemini-location is required")
			}
			opts = append(opts, adapter.WithGeminiVertex(cfg.geminiProject, cfg.geminiLocation))
		}
		return adapter.NewGemini(ctx, opts...)

	case providerClaude:
		var opts []adapter.ClaudeOption
		if cfg.model != "" {
			opts = append(opts, adapter.WithClaudeModel(cfg.model))
		}
		if cfg.baseURL != "" {
			opts = append(opts, adapter.WithClaudeBaseURL(cfg.baseURL))
		}
		return adapter.NewClaude(cfg.anthropicAPIKey, opts...)

	default:
		return nil, goerr.New("unknown provider", goerr.V("provider", cfg.provider))
	}
}

// newComposer wires the gateways into a composer. Without a credential the
// composer runs in demo mode.
func (cfg *config) newComposer(ctx context.Context, t *tuning, kind model.AnalysisKind) (*chat.Composer, error) {
	edgar, err := cfg.newEDGAR()
	if err != nil {
		return nil, err
	}
	filings := filing.New(edgar, filing.WithExcerptOptions(t.Excerpt))

	opts := []chat.ComposerOption{chat.WithAnalysisKind(kind)}

	if cfg.demoMode() {
		logging.From(ctx).Info("no model credential configured, running in demo mode", "provider", cfg.provider)
		return chat.NewComposer(filings, nil, opts...)
	}

	completer, err := cfg.newCompleter(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create language model client", goerr.V("provider", cfg.provider))
	}

	gw := analysis.New(completer,
		analysis.WithTimeout(cfg.timeout),
		analysis.WithRetry(t.Retry.BaseDelay.Duration, t.Retry.MaxAttempts),
	)
	return chat.NewComposer(filings, gw, opts...)
}

// newSession creates a chat session over composer honoring the tuning file
func newSession(composer *chat.Composer, t *tuning) *chat.Session {
	var opts []chat.SessionOption
	if t.Session.Debounce != nil {
		opts = append(opts, chat.WithDebounce(t.Session.Debounce.Duration))
	}
	return chat.NewSession(composer, opts...)
}
