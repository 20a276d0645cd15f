package filing

import (
	"strings"

	"github.com/m-mizutani/edgarchat/pkg/model"
)

// SectionKeywords anchor the passages worth sending to the model
var SectionKeywords = []string{
	"business",
	"risk factors",
	"management discussion",
	"financial statements",
	"consolidated statements",
	"balance sheet",
	"income statement",
	"cash flow",
	"revenue",
	"expenses",
	"assets",
	"liabilities",
	"equity",
}

// ExcerptOptions tunes the keyword window heuristic
type ExcerptOptions struct {
	// MaxSectionLines closes a section once it grows past this many lines
	MaxSectionLines int `toml:"max_section_lines"`
	// MaxSections is how many sections are kept
	MaxSections int `toml:"max_sections"`
	// FallbackLines is how many lines are kept when no keyword matches
	FallbackLines int `toml:"fallback_lines"`
	// MinLineLength skips shorter lines while scanning for sections
	MinLineLength int `toml:"min_line_length"`
	// MinFallbackLineLength keeps only longer lines in the fallback
	MinFallbackLineLength int `toml:"min_fallback_line_length"`
}

func DefaultExcerptOptions() ExcerptOptions {
	return ExcerptOptions{
		MaxSectionLines:       50,
		MaxSections:           5,
		FallbackLines:         2000,
		MinLineLength:         10,
		MinFallbackLineLength: 20,
	}
}

// withDefaults fills zero fields from DefaultExcerptOptions
func (o ExcerptOptions) withDefaults() ExcerptOptions {
	d := DefaultExcerptOptions()
	if o.MaxSectionLines <= 0 {
		o.MaxSectionLines = d.MaxSectionLines
	}
	if o.MaxSections <= 0 {
		o.MaxSections = d.MaxSections
	}
	if o.FallbackLines <= 0 {
		o.FallbackLines = d.FallbackLines
	}
	if o.MinLineLength <= 0 {
		o.MinLineLength = d.MinLineLength
	}
	if o.MinFallbackLineLength <= 0 {
		o.MinFallbackLineLength = d.MinFallbackLineLength
	}
	return o
}

func hasKeyword(lower string) bool {
	for _, kw := range SectionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SelectExcerpt picks keyword anchored sections from plain text. A line with
// a keyword opens a new section (flushing the open one); following lines
// append until the section exceeds MaxSectionLines, after which lines are
// ignored until the next keyword. Without any keyword the leading long lines
// are used instead.
func SelectExcerpt(text string, opts ExcerptOptions) *model.Excerpt {
	opts = opts.withDefaults()
	lines := strings.Split(text, "\n")

	var (
		sections []string
		current  []string
		open     bool
	)
	flush := func() {
		if open && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
		}
		current = nil
		open = false
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if len([]rune(line)) < opts.MinLineLength {
			continue
		}

		if hasKeyword(strings.ToLower(line)) {
			flush()
			current = []string{line}
			open = true
			continue
		}

		if open {
			current = append(current, line)
			if len(current) > opts.MaxSectionLines {
				flush()
			}
		}
	}
	flush()

	if len(sections) > 0 {
		if len(sections) > opts.MaxSections {
			sections = sections[:opts.MaxSections]
		}
		return &model.Excerpt{
			Text:     strings.Join(sections, "\n\n"),
			Sections: len(sections),
		}
	}

	var kept []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if len([]rune(line)) > opts.MinFallbackLineLength {
			kept = append(kept, line)
			if len(kept) >= opts.FallbackLines {
				break
			}
		}
	}
	return &model.Excerpt{
		Text:     strings.Join(kept, "\n"),
		Fallback: true,
	}
}
