package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/urfave/cli/v3"
)

// demoQueries is the scripted conversation of the demo command
var demoQueries = []string{
	"Search for Apple Inc",
	"Analyze Apple's latest 10-K filing",
	"What are Apple's main business risks?",
	"Summarize Apple's financial performance",
}

func demoCommand() *cli.Command {
	var (
		cfg   config
		plain bool
	)

	flags := []cli.Flag{
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
		Name:  "demo",
		Usage: "Run a scripted conversation about Apple's annual report",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			t, err := cfg.loadTuning()
			if err != nil {
				return err
			}
			composer, err := cfg.newComposer(ctx, t, model.AnalysisComprehensive)
			if err != nil {
				return err
			}
			session := newSession(composer, t)

			w := c.Root().Writer
			out := newPrinter(w, plain)
			rule := strings.Repeat("=", 60)

			fmt.Fprintln(w, rule)
			fmt.Fprintln(w, "📊 SEC FILING CHATBOT DEMO")
			fmt.Fprintln(w, rule)
			if composer.Demo() {
				fmt.Fprintln(w, "⚠️  No model API key configured, answers use sample data.")
			}

			for i, q := range demoQueries {
				fmt.Fprintf(w, "\n👤 %d. %s\n", i+1, q)
				env := submit(ctx, session, q)
				fmt.Fprintln(w, strings.Repeat("-", 40))
				out.envelope(env)
			}

			stats := session.Stats()
			fmt.Fprintf(w, "\n%s\nQuestions asked: %d\n", rule, stats.Questions)
			return nil
		},
	}
}
