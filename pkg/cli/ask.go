package cli

import (
	"context"
	"strings"

	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/usecase/chat"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg    config
		kind   string
		asJSON bool
		plain  bool
		with   string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "kind",
			Aliases:     []string{"k"},
			Usage:       "Analysis kind for analyze requests (comprehensive, financial, risks)",
			Value:       string(model.AnalysisComprehensive),
			Sources:     cli.EnvVars("EDGARCHAT_ANALYSIS_KIND"),
			Destination: &kind,
		},
		&cli.StringFlag{
			Name:        "with",
			Aliases:     []string{"w"},
			Usage:       "Analyze this company first so the query can ask about its filing",
			Destination: &with,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the response envelope as JSON",
			Destination: &asJSON,
		},
		&cli.BoolFlag{
			Name:        "plain",
			Usage:       "Print responses without Markdown rendering",
			Sources:     cli.EnvVars("EDGARCHAT_PLAIN"),
			Destination: &plain,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a single query",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return goerr.New("query is required")
			}

			analysisKind := model.AnalysisKind(kind)
			if err := analysisKind.Validate(); err != nil {
				return err
			}

			t, err := cfg.loadTuning()
			if err != nil {
				return err
			}
			composer, err := cfg.newComposer(ctx, t, analysisKind)
			if err != nil {
				return err
			}
			session := newSession(composer, t)

			if with != "" {
				env := submit(ctx, session, "Analyze "+with)
				if env.Failed() {
					return goerr.New("failed to analyze company", goerr.V("company", with), goerr.V("reason", env.Error))
				}
			}

			env := submit(ctx, session, query)
			out := newPrinter(c.Root().Writer, plain || asJSON)
			if asJSON {
				if err := out.printJSON(env); err != nil {
					return err
				}
			} else {
				out.envelope(env)
			}

			if env.Failed() {
				return goerr.New("query failed", goerr.V("query", query), goerr.V("reason", env.Error))
			}
			return nil
		},
	}
}

// submit runs one query with a progress indicator
func submit(ctx context.Context, session *chat.Session, text string) *model.Envelope {
	return withSpinner("🤖 Analyzing SEC filing...", func() *model.Envelope {
		env, _ := session.Process(ctx, text)
		return env
	})
}
