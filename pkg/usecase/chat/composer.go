package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/usecase/intent"
	"github.com/m-mizutani/edgarchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Filings is the filing registry collaborator of the composer
type Filings interface {
	FindCompanies(ctx context.Context, name string) ([]*model.Company, error)
	LatestFiling(ctx context.Context, cik model.CIK, formType string) (*model.Filing, error)
	FetchExcerpt(ctx context.Context, filing *model.Filing) (*model.Excerpt, error)
}

// Analyzer is the language model collaborator of the composer
type Analyzer interface {
	Analyze(ctx context.Context, excerpt *model.Excerpt, kind model.AnalysisKind) model.AnalysisResult
	Summarize(ctx context.Context, excerpt *model.Excerpt) (string, error)
	Answer(ctx context.Context, excerpt *model.Excerpt, question string) (string, error)
	Model() string
}

const (
	demoNote      = "*Note: This is demo data. Configure a model API key for live SEC analysis.*"
	maxListedHits = 3
)

// Composer turns one query into a response envelope. It holds no
// conversation state; the caller passes the context in.
type Composer struct {
	filings  Filings
	analyzer Analyzer
	demo     *DemoData
	kind     model.AnalysisKind
	now      func() time.Time
}

type ComposerOption func(*Composer)

// WithAnalysisKind selects the analysis kind of analyze requests
func WithAnalysisKind(kind model.AnalysisKind) ComposerOption {
	return func(c *Composer) {
		c.kind = kind
	}
}

// WithComposerClock replaces the query timestamp source
func WithComposerClock(now func() time.Time) ComposerOption {
	return func(c *Composer) {
		c.now = now
	}
}

// NewComposer creates a composer. A nil analyzer puts the composer in demo
// mode, where search and analyze requests are answered from embedded sample
// data.
func NewComposer(filings Filings, analyzer Analyzer, opts ...ComposerOption) (*Composer, error) {
	c := &Composer{
		filings:  filings,
		analyzer: analyzer,
		kind:     model.AnalysisComprehensive,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.kind.Validate(); err != nil {
		return nil, err
	}

	if analyzer == nil {
		demo, err := LoadDemoData()
		if err != nil {
			return nil, err
		}
		c.demo = demo
	}

	return c, nil
}

// Demo reports whether the composer answers from sample data
func (c *Composer) Demo() bool {
	return c.analyzer == nil
}

// result is the outcome of an intent handler
type result struct {
	text string
	data *model.Payload
}

// Process classifies text and runs the matching handler. Errors and panics
// become an error envelope; Process itself never fails.
func (c *Composer) Process(ctx context.Context, text string, cc *model.ConversationContext) (env *model.Envelope) {
	q := model.NewQuery(text, c.now())
	in := intent.Classify(text)
	logger := logging.From(ctx).With("intent", in)

	defer func() {
		if r := recover(); r != nil {
			err := goerr.New("internal error while processing query", goerr.V("panic", r))
			logger.Error("recovered from panic", "error", err)
			env = model.NewErrorEnvelope(q, in, err)
		}
	}()

	if cc == nil {
		cc = &model.ConversationContext{}
	}

	res, err := c.handle(ctx, in, text, cc)
	if err != nil {
		logger.Error("failed to process query", "error", err)
		return model.NewErrorEnvelope(q, in, err)
	}

	logger.Debug("query processed", "query", text)
	return &model.Envelope{
		Query:     q.Text,
		Timestamp: q.Timestamp,
		Intent:    in,
		Response:  res.text,
		Data:      res.data,
	}
}

func (c *Composer) handle(ctx context.Context, in model.Intent, text string, cc *model.ConversationContext) (*result, error) {
	switch in {
	case model.IntentSearchCompany:
		return c.searchCompany(ctx, text)
	case model.IntentAnalyzeFiling:
		return c.analyzeFiling(ctx, text)
	case model.IntentAskQuestion:
		return c.askQuestion(ctx, text, cc)
	case model.IntentGetSummary:
		return c.summarize(ctx, cc)
	case model.IntentCompareCompanies:
		return &result{text: "Company comparison feature requires analyzing multiple companies. Please analyze individual companies first, then I can help compare them."}, nil
	default:
		return c.general(), nil
	}
}

func (c *Composer) searchCompany(ctx context.Context, text string) (*result, error) {
	name := ExtractCompanyName(text)
	if name == "" {
		return &result{text: "Please specify a company name to search for."}, nil
	}
	if c.Demo() {
		return c.demoSearch(name), nil
	}

	companies, err := c.filings.FindCompanies(ctx, name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search companies", goerr.V("name", name))
	}
	if len(companies) == 0 {
		return &result{text: fmt.Sprintf("No companies found matching '%s'", name)}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d companies matching '%s':\n\n", len(companies), name)
	for i, co := range companies[:min(len(companies), maxListedHits)] {
		fmt.Fprintf(&b, "%d. %s (Ticker: %s)\n", i+1, co.Name, co.Ticker)
	}
	top := companies[0]
	fmt.Fprintf(&b, "\nTo analyze %s's latest 10-K filing, say 'analyze %s'", top.Name, top.Name)

	return &result{
		text: b.String(),
		data: &model.Payload{Company: top, Companies: companies},
	}, nil
}

func (c *Composer) analyzeFiling(ctx context.Context, text string) (*result, error) {
	name := ExtractCompanyName(text)
	if name == "" {
		return &result{text: "Please specify a company name to analyze."}, nil
	}
	if c.Demo() {
		return c.demoAnalysis(name), nil
	}

	notFound := &result{text: fmt.Sprintf("No %s filing content found for %s", model.FormAnnualReport, name)}

	companies, err := c.filings.FindCompanies(ctx, name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search companies", goerr.V("name", name))
	}
	if len(companies) == 0 {
		return notFound, nil
	}
	company := companies[0]

	filing, err := c.filings.LatestFiling(ctx, company.CIK, model.FormAnnualReport)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find latest filing", goerr.V("cik", company.CIK))
	}
	if filing == nil {
		return notFound, nil
	}

	excerpt, err := c.filings.FetchExcerpt(ctx, filing)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch filing content", goerr.V("accession", filing.Accession))
	}
	if excerpt == nil {
		return notFound, nil
	}

	analysis := c.analyzer.Analyze(ctx, excerpt, c.kind)
	return &result{
		text: FormatAnalysis(analysis, company.Name),
		data: &model.Payload{
			Company:  company,
			Filing:   filing,
			Analysis: analysis,
			Content:  excerpt.Text,
		},
	}, nil
}

func (c *Composer) askQuestion(ctx context.Context, question string, cc *model.ConversationContext) (*result, error) {
	if c.Demo() || !cc.HasContent() {
		return &result{text: "Please first search for and analyze a company's filing before asking questions."}, nil
	}

	answer, err := c.analyzer.Answer(ctx, &model.Excerpt{Text: cc.Content}, question)
	if err != nil {
		return nil, err
	}
	return &result{
		text: answer,
		data: &model.Payload{Question: question, Answer: answer},
	}, nil
}

func (c *Composer) summarize(ctx context.Context, cc *model.ConversationContext) (*result, error) {
	if c.Demo() || !cc.HasContent() {
		return &result{text: "Please first search for and analyze a company's filing before requesting a summary."}, nil
	}

	summary, err := c.analyzer.Summarize(ctx, &model.Excerpt{Text: cc.Content})
	if err != nil {
		return nil, err
	}
	return &result{
		text: "**Executive Summary:**\n\n" + summary,
		data: &model.Payload{Summary: summary},
	}, nil
}

const capabilityExamples = `• **Search for Apple Inc** - Find company information
• **Analyze Microsoft's latest 10-K** - Get filing analysis
• **What are Tesla's main business risks?** - Risk assessment
• **Summarize Amazon's financial performance** - Financial summary`

func (c *Composer) general() *result {
	if c.Demo() {
		return &result{text: "🤖 **Demo Mode Active**\n\nI can help you explore SEC filings! Try these demo queries:\n\n" +
			capabilityExamples + "\n\n" + demoNote}
	}
	return &result{text: "🤖 **AI Analysis Ready**\n\nI can help you analyze SEC filings with real AI! Try these queries:\n\n" +
		capabilityExamples + "\n\n*Powered by " + c.analyzer.Model() + "*"}
}

func (c *Composer) demoSearch(name string) *result {
	dc := c.demo.company(name)
	if dc == nil {
		return &result{text: fmt.Sprintf("🔍 **Company Search Results**\n\nI couldn't find '%s' in the demo database.\n\n**Available Demo Companies:**\n%s\nTry searching for one of these companies!\n\n%s",
			name, c.demo.companyList(), demoNote)}
	}

	co, p := dc.Company, dc.Profile
	text := fmt.Sprintf("🏢 **%s** (%s)\n\n📊 **Company Overview:**\n%s\n\n📈 **Key Metrics:**\n• Market Cap: %s\n• Employees: %s\n• Founded: %s\n• CIK: %s\n\n💡 **Next Steps:**\nTry asking: \"Analyze %s's latest 10-K\" for detailed financial analysis.\n\n%s",
		co.Name, co.Ticker, p.Description, p.MarketCap, p.Employees, p.Founded, co.CIK, co.Name, demoNote)

	return &result{
		text: text,
		data: &model.Payload{Company: &co, Profile: &p, DemoMode: true},
	}
}

func (c *Composer) demoAnalysis(name string) *result {
	dc, da := c.demo.analysis(name)
	if da == nil {
		return &result{text: fmt.Sprintf("I can provide demo analysis for %s. Try 'Analyze Apple's latest 10-K' or 'Analyze Microsoft's latest 10-K'.\n\n%s",
			strings.Join(c.demo.analysisNames(), ", "), demoNote)}
	}

	co := dc.Company
	analysis := da.Analysis
	analysis.AnalysisKind = model.AnalysisComprehensive
	analysis.Model = DemoModel

	return &result{
		text: fmt.Sprintf("📊 **Analysis of %s (%s)**\n\n%s\n\n%s", co.Name, co.Ticker, analysis.ExecutiveSummary, demoNote),
		data: &model.Payload{
			Company: &co,
			Filing: &model.Filing{
				CIK:        co.CIK,
				FormType:   model.FormAnnualReport,
				FilingDate: da.FilingDate,
			},
			Analysis: &analysis,
			DemoMode: true,
		},
	}
}
