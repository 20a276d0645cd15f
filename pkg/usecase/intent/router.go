package intent

import (
	"strings"

	"github.com/m-mizutani/edgarchat/pkg/model"
)

type rule struct {
	match  func(lower, raw string) bool
	intent model.Intent
}

func containsAny(words ...string) func(lower, raw string) bool {
	return func(lower, _ string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
}

// rules are evaluated top to bottom and the first match wins. Order matters:
// "Analyze ... company" routes to search because rule 1 fires first.
var rules = []rule{
	{containsAny("search", "find", "look for", "company"), model.IntentSearchCompany},
	{containsAny("analyze", "analysis", "review", "examine"), model.IntentAnalyzeFiling},
	{containsAny("compare", "comparison", "vs", "versus"), model.IntentCompareCompanies},
	{containsAny("summary", "summarize", "overview"), model.IntentGetSummary},
	{func(lower, raw string) bool {
		return strings.Contains(raw, "?") || containsAny("what", "how", "why", "when", "where")(lower, raw)
	}, model.IntentAskQuestion},
}

// Classify maps free text to an intent using case-insensitive substring
// rules. It is pure and never fails; unmatched text is IntentGeneral.
func Classify(text string) model.Intent {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.match(lower, text) {
			return r.intent
		}
	}
	return model.IntentGeneral
}
