package filing

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/m-mizutani/edgarchat/pkg/adapter"
	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	ScoreExactTicker = 100
	ScoreExactName   = 95
	ScoreNameContain = 90
	ScoreWordMatch   = 70

	// MaxMatches bounds FindCompanies results
	MaxMatches = 5
)

// Gateway resolves companies, filings and excerpts from the filing registry.
// Not-found outcomes are (nil, nil); transport and parse failures are
// returned as errors and never panic.
type Gateway struct {
	edgar   adapter.EDGAR
	excerpt ExcerptOptions
}

type Option func(*Gateway)

func WithExcerptOptions(opts ExcerptOptions) Option {
	return func(g *Gateway) {
		g.excerpt = opts.withDefaults()
	}
}

func New(edgar adapter.EDGAR, opts ...Option) *Gateway {
	g := &Gateway{
		edgar:   edgar,
		excerpt: DefaultExcerptOptions(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Match is a ranked company search hit
type Match struct {
	Company *model.Company
	Score   int
}

// RankCompanies scores directory entries against name. Word matches are only
// consulted when nothing scored ScoreNameContain or better. Ties keep
// directory order.
func RankCompanies(directory []*model.Company, name string) []Match {
	term := strings.ToLower(strings.TrimSpace(name))
	if term == "" {
		return nil
	}
	termCIK, cikErr := model.NewCIK(term)

	var matches []Match
	for _, c := range directory {
		title := strings.ToLower(c.Name)
		switch {
		case strings.ToLower(c.Ticker) == term || (cikErr == nil && c.CIK == termCIK):
			matches = append(matches, Match{Company: c, Score: ScoreExactTicker})
		case title == term:
			matches = append(matches, Match{Company: c, Score: ScoreExactName})
		case strings.Contains(title, term):
			matches = append(matches, Match{Company: c, Score: ScoreNameContain})
		}
	}

	if len(matches) == 0 {
		var words []string
		for _, w := range strings.Fields(term) {
			if len([]rune(w)) > 2 {
				words = append(words, w)
			}
		}
		for _, c := range directory {
			title := strings.ToLower(c.Name)
			for _, w := range words {
				if strings.Contains(title, w) {
					matches = append(matches, Match{Company: c, Score: ScoreWordMatch})
					break
				}
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > MaxMatches {
		matches = matches[:MaxMatches]
	}
	return matches
}

// FindCompanies returns up to MaxMatches companies, strongest match first
func (g *Gateway) FindCompanies(ctx context.Context, name string) ([]*model.Company, error) {
	directory, err := g.edgar.CompanyTickers(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load company directory", goerr.V("name", name))
	}

	matches := RankCompanies(directory, name)
	companies := make([]*model.Company, 0, len(matches))
	for _, m := range matches {
		companies = append(companies, m.Company)
	}

	logging.From(ctx).Debug("company search", "name", name, "matches", len(companies))
	return companies, nil
}

// LatestFiling returns the most recent filing of formType, or nil when the
// company has none.
func (g *Gateway) LatestFiling(ctx context.Context, cik model.CIK, formType string) (*model.Filing, error) {
	sub, err := g.edgar.Submissions(ctx, cik)
	if err != nil {
		if errors.Is(err, adapter.ErrNotFound) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get submissions", goerr.V("cik", cik))
	}

	for _, f := range sub.Filings {
		if strings.EqualFold(f.FormType, formType) {
			return f, nil
		}
	}

	logging.From(ctx).Debug("no filing of requested form", "cik", cik, "form", formType)
	return nil, nil
}

// FetchExcerpt downloads the filing document and selects its keyword anchored
// passages. A missing or empty document yields nil.
func (g *Gateway) FetchExcerpt(ctx context.Context, filing *model.Filing) (*model.Excerpt, error) {
	doc, err := g.edgar.Document(ctx, filing)
	if err != nil {
		if errors.Is(err, adapter.ErrNotFound) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to download filing document", goerr.V("filing", filing))
	}

	text, err := ExtractText(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract filing text", goerr.V("filing", filing))
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	excerpt := SelectExcerpt(text, g.excerpt)
	if excerpt.Text == "" {
		return nil, nil
	}

	logging.From(ctx).Debug("excerpt selected",
		"accession", filing.Accession,
		"sections", excerpt.Sections,
		"fallback", excerpt.Fallback,
		"chars", len(excerpt.Text),
	)
	return excerpt, nil
}
