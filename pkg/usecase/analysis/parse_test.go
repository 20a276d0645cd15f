package analysis_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/usecase/analysis"
	"github.com/m-mizutani/gt"
)

func TestParseAnalysis(t *testing.T) {
	const reply = `{
  "executive_summary": "Apple sells devices and services.",
  "financial_highlights": {"revenue": "$383.3B", "profitability": "", "key_metrics": ["Services $85.2B"]},
  "business_risks": ["Competition"],
  "growth_opportunities": ["AI"],
  "investment_recommendation": "Stable.",
  "confidence_score": 80
}`

	t.Run("bare json object", func(t *testing.T) {
		r := analysis.ParseAnalysis(reply, model.AnalysisFinancial, "m")
		s, ok := r.(*model.StructuredAnalysis)
		gt.V(t, ok).Equal(true)
		gt.Equal(t, s.ExecutiveSummary, "Apple sells devices and services.")
		gt.Equal(t, s.FinancialHighlights.Revenue, "$383.3B")
		gt.V(t, s.ConfidenceScore != nil).Equal(true)
		gt.Equal(t, *s.ConfidenceScore, 80)
		gt.Equal(t, s.Kind(), model.AnalysisFinancial)
		gt.Equal(t, s.Model, "m")
	})

	t.Run("fenced json object", func(t *testing.T) {
		r := analysis.ParseAnalysis("```json\n"+reply+"\n```", model.AnalysisRisks, "m")
		gt.Equal(t, r.Format(), model.FormatStructured)
	})

	t.Run("confidence score is decoded leniently", func(t *testing.T) {
		testCases := []struct {
			raw  string
			want *int
		}{
			{`85.0`, ptrInt(85)},
			{`"85"`, ptrInt(85)},
			{`84.6`, ptrInt(85)},
			{`0`, ptrInt(0)},
			{`"high"`, nil},
			{`null`, nil},
		}
		for _, tc := range testCases {
			t.Run(tc.raw, func(t *testing.T) {
				r := analysis.ParseAnalysis(`{"executive_summary":"Solid.","confidence_score":`+tc.raw+`}`, model.AnalysisRisks, "m")
				s, ok := r.(*model.StructuredAnalysis)
				gt.V(t, ok).Equal(true)
				gt.Equal(t, s.ExecutiveSummary, "Solid.")
				gt.Equal(t, s.ConfidenceScore, tc.want)
			})
		}
	})

	t.Run("missing confidence score stays unset", func(t *testing.T) {
		r := analysis.ParseAnalysis(`{"business_risks":["Supply chain"]}`, model.AnalysisRisks, "m")
		s, ok := r.(*model.StructuredAnalysis)
		gt.V(t, ok).Equal(true)
		gt.V(t, s.ConfidenceScore == nil).Equal(true)
	})

	t.Run("object without known sections is raw", func(t *testing.T) {
		r := analysis.ParseAnalysis(`{"answer": "yes"}`, model.AnalysisRisks, "m")
		gt.Equal(t, r.Format(), model.FormatText)
		gt.Equal(t, r.(*model.RawAnalysis).Text, `{"answer": "yes"}`)
	})

	t.Run("malformed json is raw", func(t *testing.T) {
		r := analysis.ParseAnalysis(`{"executive_summary": "cut off`, model.AnalysisFinancial, "m")
		gt.Equal(t, r.Format(), model.FormatText)
	})

	t.Run("plain text is raw", func(t *testing.T) {
		r := analysis.ParseAnalysis("  Apple had a good year.\n", model.AnalysisComprehensive, "m")
		gt.Equal(t, r.(*model.RawAnalysis).Text, "Apple had a good year.")
	})
}

func TestReplySchema(t *testing.T) {
	s := analysis.ReplySchema()
	gt.Equal(t, s.Type, "object")
	gt.V(t, s.Properties["business_risks"] != nil).Equal(true)
	gt.Equal(t, s.Properties["confidence_score"].Type, "integer")
	gt.V(t, slices.Contains(s.Required, "executive_summary")).Equal(true)
}

func TestFallback(t *testing.T) {
	long := &model.Excerpt{Text: strings.Repeat("x", 1500)}
	text := analysis.Fallback(long, model.AnalysisComprehensive)
	gt.S(t, text).Contains(strings.Repeat("x", 1000) + "...")
	gt.S(t, text).NotContains(strings.Repeat("x", 1001))

	gt.S(t, analysis.Fallback(nil, model.AnalysisRisks)).Contains("No content available")
}

func ptrInt(v int) *int { return &v }
