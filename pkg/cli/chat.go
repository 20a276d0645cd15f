package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/usecase/chat"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// testQuery is submitted by the /test shortcut
const testQuery = "Search for Apple Inc"

const chatHelp = `Commands:
  /clear    clear history and context
  /history  show the conversation
  /context  show what follow-up questions can use
  /stats    show session statistics
  /test     run "` + testQuery + `"
  /help     show this help
  exit      quit`

func chatCommand() *cli.Command {
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
		Name:  "chat",
		Usage: "Interactive chat about SEC filings",
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

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "👤 > ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize line editor")
			}
			defer rl.Close()

			r := &repl{
				session: newSession(composer, t),
				out:     newPrinter(c.Root().Writer, plain),
				spinner: true,
			}

			w := c.Root().Writer
			fmt.Fprintln(w, "📊 SEC Filing Chatbot")
			if composer.Demo() {
				fmt.Fprintln(w, "⚠️  Demo mode: no model API key configured, answers use sample data.")
			}
			fmt.Fprintln(w, "Type /help for commands, 'exit' to quit.")

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				if r.handle(ctx, line) {
					break
				}
			}

			fmt.Fprintln(w, "👋 Chat session completed")
			return nil
		},
	}
}

// repl runs one input line against a session
type repl struct {
	session *chat.Session
	out     *printer
	spinner bool
}

// handle processes line and reports whether the loop should end
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	w := r.out.w

	switch strings.ToLower(line) {
	case "":
		return false
	case "exit", "quit", "q":
		return true
	case "/help":
		fmt.Fprintln(w, chatHelp)
		return false
	case "/clear":
		r.session.Reset()
		fmt.Fprintln(w, "🧹 Chat cleared")
		return false
	case "/history":
		for _, msg := range r.session.Messages() {
			fmt.Fprintf(w, "[%s] %s\n", msg.Role, msg.Content)
		}
		return false
	case "/context":
		if err := r.out.printJSON(contextPayload(r.session.Context())); err != nil {
			fmt.Fprintln(w, model.ErrorMarker, err.Error())
		}
		return false
	case "/stats":
		stats := r.session.Stats()
		fmt.Fprintf(w, "Questions asked: %d\nMessages: %d\n", stats.Questions, stats.Messages)
		return false
	case "/test":
		line = testQuery
	}

	var (
		env   *model.Envelope
		fresh bool
	)
	process := func() *model.Envelope {
		env, fresh = r.session.Process(ctx, line)
		return env
	}
	if r.spinner {
		withSpinner("🤖 Analyzing SEC filing...", process)
	} else {
		process()
	}

	if !fresh {
		fmt.Fprintln(w, "(same question just answered, showing previous response)")
	}
	r.out.envelope(env)
	return false
}
