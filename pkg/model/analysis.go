package model

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

type AnalysisKind string

const (
	AnalysisComprehensive AnalysisKind = "comprehensive"
	AnalysisFinancial     AnalysisKind = "financial"
	AnalysisRisks         AnalysisKind = "risks"
)

// Validate checks if the kind is a known analysis kind
func (k AnalysisKind) Validate() error {
	switch k {
	case AnalysisComprehensive, AnalysisFinancial, AnalysisRisks:
		return nil
	default:
		return goerr.New("invalid analysis kind", goerr.V("kind", k))
	}
}

// AnalysisFormat discriminates the variants of AnalysisResult
type AnalysisFormat string

const (
	FormatStructured AnalysisFormat = "structured"
	FormatText       AnalysisFormat = "text"
	FormatError      AnalysisFormat = "error"
)

// AnalysisResult is one of *StructuredAnalysis, *RawAnalysis or
// *FailedAnalysis. Values are never mutated after creation.
type AnalysisResult interface {
	Format() AnalysisFormat
	Kind() AnalysisKind
	analysisResult()
}

type FinancialHighlights struct {
	Revenue       string   `json:"revenue,omitempty" yaml:"revenue"`
	Profitability string   `json:"profitability,omitempty" yaml:"profitability"`
	KeyMetrics    []string `json:"key_metrics,omitempty" yaml:"key_metrics"`
}

// IsEmpty reports whether no highlight is present
func (h FinancialHighlights) IsEmpty() bool {
	return h.Revenue == "" && h.Profitability == "" && len(h.KeyMetrics) == 0
}

type StructuredAnalysis struct {
	AnalysisKind AnalysisKind `json:"analysis_type,omitempty" yaml:"-"`
	Model        string       `json:"model_used,omitempty" yaml:"-"`

	ExecutiveSummary         string              `json:"executive_summary,omitempty" yaml:"executive_summary"`
	FinancialHighlights      FinancialHighlights `json:"financial_highlights" yaml:"financial_highlights"`
	BusinessRisks            []string            `json:"business_risks,omitempty" yaml:"business_risks"`
	GrowthOpportunities      []string            `json:"growth_opportunities,omitempty" yaml:"growth_opportunities"`
	KeyInsights              []string            `json:"key_insights,omitempty" yaml:"key_insights"`
	InvestmentRecommendation string              `json:"investment_recommendation,omitempty" yaml:"investment_recommendation"`
	ConfidenceScore          *int                `json:"confidence_score,omitempty" yaml:"confidence_score"`
}

// HasSections reports whether at least one known section carries content
func (a *StructuredAnalysis) HasSections() bool {
	return a.ExecutiveSummary != "" ||
		!a.FinancialHighlights.IsEmpty() ||
		len(a.BusinessRisks) > 0 ||
		len(a.GrowthOpportunities) > 0 ||
		len(a.KeyInsights) > 0 ||
		a.InvestmentRecommendation != "" ||
		a.ConfidenceScore != nil
}

func (a *StructuredAnalysis) Format() AnalysisFormat { return FormatStructured }
func (a *StructuredAnalysis) Kind() AnalysisKind     { return a.AnalysisKind }
func (a *StructuredAnalysis) analysisResult()        {}

type RawAnalysis struct {
	AnalysisKind AnalysisKind `json:"analysis_type,omitempty"`
	Model        string       `json:"model_used,omitempty"`
	Text         string       `json:"raw_analysis"`
}

func (a *RawAnalysis) Format() AnalysisFormat { return FormatText }
func (a *RawAnalysis) Kind() AnalysisKind     { return a.AnalysisKind }
func (a *RawAnalysis) analysisResult()        {}

// FailedAnalysis is produced when the model could not be reached. Fallback
// is generated locally from the excerpt.
type FailedAnalysis struct {
	AnalysisKind AnalysisKind `json:"analysis_type,omitempty"`
	Error        string       `json:"error"`
	Fallback     string       `json:"fallback"`
}

func (a *FailedAnalysis) Format() AnalysisFormat { return FormatError }
func (a *FailedAnalysis) Kind() AnalysisKind     { return a.AnalysisKind }
func (a *FailedAnalysis) analysisResult()        {}

// MarshalAnalysis encodes a result with its "format" discriminator
func MarshalAnalysis(r AnalysisResult) ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	body, err := json.Marshal(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal analysis")
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, goerr.Wrap(err, "failed to decode analysis fields")
	}
	fields["format"] = r.Format()

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal analysis")
	}
	return out, nil
}

// UnmarshalAnalysis decodes a result produced by MarshalAnalysis
func UnmarshalAnalysis(data []byte) (AnalysisResult, error) {
	var head struct {
		Format AnalysisFormat `json:"format"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, goerr.Wrap(err, "failed to decode analysis format")
	}

	var r AnalysisResult
	switch head.Format {
	case FormatStructured:
		r = &StructuredAnalysis{}
	case FormatText:
		r = &RawAnalysis{}
	case FormatError:
		r = &FailedAnalysis{}
	default:
		return nil, goerr.New("unknown analysis format", goerr.V("format", head.Format))
	}

	if err := json.Unmarshal(data, r); err != nil {
		return nil, goerr.Wrap(err, "failed to decode analysis", goerr.V("format", head.Format))
	}
	return r, nil
}
