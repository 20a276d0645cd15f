package chat

import (
	"strings"
)

// commandPhrases precede the company name in search and analyze requests.
// The first phrase found in the query wins.
var commandPhrases = []string{
	"analyze ",
	"search for ",
	"find ",
	"look for ",
	"company ",
	"review ",
	"examine ",
}

var fillerWords = map[string]bool{
	"the":     true,
	"company": true,
	"latest":  true,
	"recent":  true,
	"most":    true,
	"10-k":    true,
	"10-q":    true,
	"10k":     true,
	"10q":     true,
	"filing":  true,
	"filings": true,
	"report":  true,
}

// connectorWords are dropped when they lead the name, as in "10-K of Apple"
var connectorWords = map[string]bool{
	"of":    true,
	"for":   true,
	"from":  true,
	"about": true,
	"on":    true,
}

const maxNameWords = 3

// ExtractCompanyName pulls the company name out of a request such as
// "Analyze Microsoft's latest 10-K". Without a command phrase the whole query
// is cleaned and returned. Filler words are dropped before the name is cut to
// maxNameWords.
func ExtractCompanyName(query string) string {
	text := strings.TrimSpace(query)
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		// case mapping changed byte offsets
		text = lower
	}

	// padding lets a phrase at the very end match without its space
	text, lower = text+" ", lower+" "

	words := strings.Fields(text)
	limit := 0
	for _, phrase := range commandPhrases {
		if idx := strings.Index(lower, phrase); idx >= 0 {
			words = strings.Fields(text[idx+len(phrase):])
			limit = maxNameWords
			break
		}
	}

	var name []string
	for _, w := range words {
		w = cleanWord(w)
		key := strings.ToLower(w)
		if w == "" || fillerWords[key] {
			continue
		}
		if len(name) == 0 && connectorWords[key] {
			continue
		}
		name = append(name, w)
		if limit > 0 && len(name) == limit {
			break
		}
	}
	return strings.Join(name, " ")
}

func cleanWord(w string) string {
	w = strings.TrimRight(w, ".,!?;:\"")
	w = strings.TrimLeft(w, "\"")
	for _, suffix := range []string{"'s", "’s", "'"} {
		if trimmed, ok := strings.CutSuffix(w, suffix); ok {
			w = trimmed
			break
		}
	}
	return w
}
