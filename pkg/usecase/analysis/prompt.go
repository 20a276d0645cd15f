package analysis

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"text/template"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Character budgets applied to the excerpt per call type
const (
	BudgetComprehensive = 4000
	BudgetStructured    = 6000
	BudgetSummary       = 3000
	BudgetAnswer        = 6000

	// fallbackPreviewChars is how much excerpt the local fallback quotes
	fallbackPreviewChars = 1000
)

const (
	systemAnalyst  = "You are a helpful financial analyst. Provide clear, concise answers about SEC filings. Use simple language and avoid complex formatting."
	systemSummary  = "You are a business analyst creating executive summaries. Be concise and focus on key insights."
	systemQuestion = "You are a helpful financial analyst. Answer questions about SEC filings clearly and concisely."
)

var (
	//go:embed prompt/comprehensive.md
	comprehensivePromptRaw string
	//go:embed prompt/structured.md
	structuredPromptRaw string
	//go:embed prompt/summary.md
	summaryPromptRaw string
	//go:embed prompt/answer.md
	answerPromptRaw string
	//go:embed prompt/fallback.md
	fallbackPromptRaw string
)

var (
	comprehensivePromptTmpl = template.Must(template.New("comprehensive").Parse(comprehensivePromptRaw))
	structuredPromptTmpl    = template.Must(template.New("structured").Parse(structuredPromptRaw))
	summaryPromptTmpl       = template.Must(template.New("summary").Parse(summaryPromptRaw))
	answerPromptTmpl        = template.Must(template.New("answer").Parse(answerPromptRaw))
	fallbackPromptTmpl      = template.Must(template.New("fallback").Parse(fallbackPromptRaw))
)

// structuredReply is the JSON shape requested for financial and risks
// analyses.
type structuredReply struct {
	ExecutiveSummary    string `json:"executive_summary" jsonschema:"Two or three sentences on the company's position"`
	FinancialHighlights struct {
		Revenue       string   `json:"revenue" jsonschema:"Revenue figure and trend"`
		Profitability string   `json:"profitability" jsonschema:"Net income and margins"`
		KeyMetrics    []string `json:"key_metrics" jsonschema:"Notable figures as short phrases"`
	} `json:"financial_highlights"`
	BusinessRisks            []string   `json:"business_risks" jsonschema:"Most material risks first"`
	GrowthOpportunities      []string   `json:"growth_opportunities"`
	KeyInsights              []string   `json:"key_insights,omitempty"`
	InvestmentRecommendation string     `json:"investment_recommendation" jsonschema:"One or two sentence outlook"`
	ConfidenceScore          replyScore `json:"confidence_score" jsonschema:"Integer from 0 to 100"`
}

// replyScore accepts 85, 85.0 and "85". A value that is not a number is
// dropped instead of failing the whole reply.
type replyScore struct {
	value int
	set   bool
}

func (s *replyScore) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(strings.Trim(string(data), `"`))
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*s = replyScore{}
		return nil
	}
	s.value, s.set = int(math.Round(f)), true
	return nil
}

func (s replyScore) ptr() *int {
	if !s.set {
		return nil
	}
	v := s.value
	return &v
}

func (r *structuredReply) toModel(kind model.AnalysisKind, modelName string) *model.StructuredAnalysis {
	return &model.StructuredAnalysis{
		AnalysisKind:     kind,
		Model:            modelName,
		ExecutiveSummary: r.ExecutiveSummary,
		FinancialHighlights: model.FinancialHighlights{
			Revenue:       r.FinancialHighlights.Revenue,
			Profitability: r.FinancialHighlights.Profitability,
			KeyMetrics:    r.FinancialHighlights.KeyMetrics,
		},
		BusinessRisks:            r.BusinessRisks,
		GrowthOpportunities:      r.GrowthOpportunities,
		KeyInsights:              r.KeyInsights,
		InvestmentRecommendation: r.InvestmentRecommendation,
		ConfidenceScore:          r.ConfidenceScore.ptr(),
	}
}

var (
	replySchema     *jsonschema.Schema
	replySchemaJSON string
)

func init() {
	s, err := jsonschema.For[structuredReply](&jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeFor[replyScore](): {Type: "integer"},
		},
	})
	if err != nil {
		panic(err)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		panic(err)
	}
	replySchema = s
	replySchemaJSON = string(raw)
}

// ReplySchema returns the JSON Schema of structured analyses
func ReplySchema() *jsonschema.Schema {
	return replySchema
}

func render(tmpl *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to execute prompt template", goerr.V("template", tmpl.Name()))
	}
	return buf.String(), nil
}

func buildAnalyzePrompt(excerpt *model.Excerpt, kind model.AnalysisKind) (string, *jsonschema.Schema, error) {
	if kind == model.AnalysisComprehensive {
		p, err := render(comprehensivePromptTmpl, map[string]any{
			"Content": excerpt.Truncate(BudgetComprehensive),
		})
		return p, nil, err
	}

	p, err := render(structuredPromptTmpl, map[string]any{
		"Kind":    string(kind),
		"Content": excerpt.Truncate(BudgetStructured),
		"Schema":  replySchemaJSON,
	})
	return p, replySchema, err
}

// Fallback renders the local, model free analysis used after retries are
// exhausted.
func Fallback(excerpt *model.Excerpt, kind model.AnalysisKind) string {
	preview := excerpt.Truncate(fallbackPreviewChars)
	if preview == "" {
		preview = "No content available"
	}

	text, err := render(fallbackPromptTmpl, map[string]any{
		"Kind":    string(kind),
		"Preview": preview,
	})
	if err != nil {
		return "Content preview: " + preview
	}
	return text
}
