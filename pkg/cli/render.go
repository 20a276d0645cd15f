package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/glamour"
	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// printer writes responses, rendering Markdown unless plain output is asked
type printer struct {
	w  io.Writer
	md *glamour.TermRenderer
}

func newPrinter(w io.Writer, plain bool) *printer {
	p := &printer{w: w}
	if plain {
		return p
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		logging.Default().Warn("markdown renderer unavailable, printing plain text", "error", err)
		return p
	}
	p.md = md
	return p
}

func (p *printer) markdown(text string) {
	if p.md != nil {
		if out, err := p.md.Render(text); err == nil {
			fmt.Fprint(p.w, out)
			return
		}
	}
	fmt.Fprintln(p.w, text)
}

func (p *printer) envelope(env *model.Envelope) {
	p.markdown(env.Response)
	if env.Data == nil {
		return
	}
	if c := env.Data.Company; c != nil {
		fmt.Fprintf(p.w, "📈 Company: %s (%s)\n", c.Name, c.Ticker)
	}
	if f := env.Data.Filing; f != nil {
		fmt.Fprintf(p.w, "📄 Form: %s  📅 Date: %s\n", f.FormType, f.FilingDate)
	}
}

func (p *printer) printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal output")
	}
	fmt.Fprintln(p.w, string(raw))
	return nil
}

// withSpinner shows a progress indicator on stderr while fn runs
func withSpinner[T any](suffix string, fn func() T) T {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + suffix
	s.Start()
	defer s.Stop()
	return fn()
}

// contextPayload exposes the rolling context in its wire shape
func contextPayload(cc *model.ConversationContext) *model.Payload {
	return &model.Payload{
		Company:   cc.Company,
		Profile:   cc.Profile,
		Companies: cc.Companies,
		Filing:    cc.Filing,
		Analysis:  cc.Analysis,
		Content:   model.TruncateRunes(cc.Content, 500),
		Question:  cc.Question,
		Answer:    cc.Answer,
		Summary:   cc.Summary,
		DemoMode:  cc.DemoMode,
	}
}
