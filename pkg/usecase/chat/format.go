package chat

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/edgarchat/pkg/model"
)

// FormatAnalysis renders an analysis result as Markdown text for the named
// company. Each section label appears at most once and only when the section
// has content.
func FormatAnalysis(result model.AnalysisResult, name string) string {
	switch r := result.(type) {
	case *model.StructuredAnalysis:
		return formatStructured(r, name)
	case *model.RawAnalysis:
		text := r.Text
		if text == "" {
			text = "No analysis available"
		}
		return fmt.Sprintf("**Analysis of %s:**\n\n%s", name, text)
	case *model.FailedAnalysis:
		return fmt.Sprintf("Analysis of %s:\n\n%s\n\n⚠️ Note: %s", name, r.Fallback, r.Error)
	default:
		return fmt.Sprintf("**Analysis of %s:**\n\nNo analysis available", name)
	}
}

func formatStructured(a *model.StructuredAnalysis, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Comprehensive Analysis of %s:**\n\n", name)

	if a.ExecutiveSummary != "" {
		fmt.Fprintf(&b, "**Executive Summary:**\n%s\n\n", a.ExecutiveSummary)
	}

	if h := a.FinancialHighlights; !h.IsEmpty() {
		b.WriteString("**Financial Highlights:**\n")
		if h.Revenue != "" {
			fmt.Fprintf(&b, "• Revenue: %s\n", h.Revenue)
		}
		if h.Profitability != "" {
			fmt.Fprintf(&b, "• Profitability: %s\n", h.Profitability)
		}
		if len(h.KeyMetrics) > 0 {
			fmt.Fprintf(&b, "• Key Metrics: %s\n", strings.Join(h.KeyMetrics, ", "))
		}
		b.WriteString("\n")
	}

	writeList(&b, "Key Business Risks", a.BusinessRisks)
	writeList(&b, "Growth Opportunities", a.GrowthOpportunities)
	writeList(&b, "Key Insights", a.KeyInsights)

	if a.InvestmentRecommendation != "" {
		fmt.Fprintf(&b, "**Investment Outlook:**\n%s\n\n", a.InvestmentRecommendation)
	}
	if a.ConfidenceScore != nil {
		fmt.Fprintf(&b, "*Analysis Confidence: %d%%*", *a.ConfidenceScore)
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "• %s\n", item)
	}
	b.WriteString("\n")
}
