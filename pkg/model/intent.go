package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidIntent = goerr.New("invalid intent")
)

type Intent string

const (
	IntentSearchCompany    Intent = "search_company"
	IntentAnalyzeFiling    Intent = "analyze_filing"
	IntentAskQuestion      Intent = "ask_question"
	IntentCompareCompanies Intent = "compare_companies"
	IntentGetSummary       Intent = "get_summary"
	IntentGeneral          Intent = "general"
)

// Intents lists every intent in routing order
var Intents = []Intent{
	IntentSearchCompany,
	IntentAnalyzeFiling,
	IntentCompareCompanies,
	IntentGetSummary,
	IntentAskQuestion,
	IntentGeneral,
}

// Validate checks if the intent is one of the known values
func (i Intent) Validate() error {
	for _, known := range Intents {
		if i == known {
			return nil
		}
	}
	return goerr.Wrap(ErrInvalidIntent, "unknown intent", goerr.V("intent", i))
}

// Query is a single user submission
type Query struct {
	Text      string
	Timestamp time.Time
}

// NewQuery stamps text with the given arrival time
func NewQuery(text string, now time.Time) Query {
	return Query{Text: text, Timestamp: now}
}
