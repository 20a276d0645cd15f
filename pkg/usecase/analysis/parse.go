package analysis

import (
	"encoding/json"
	"strings"

	"github.com/m-mizutani/edgarchat/pkg/model"
)

// ParseAnalysis turns model output into a result. A JSON object, bare or in a
// Markdown code fence, with at least one known section becomes a
// StructuredAnalysis. Anything else is kept as RawAnalysis.
func ParseAnalysis(text string, kind model.AnalysisKind, modelName string) model.AnalysisResult {
	if body, ok := jsonObject(text); ok {
		var reply structuredReply
		if err := json.Unmarshal([]byte(body), &reply); err == nil {
			if result := reply.toModel(kind, modelName); result.HasSections() {
				return result
			}
		}
	}

	return &model.RawAnalysis{
		AnalysisKind: kind,
		Model:        modelName,
		Text:         strings.TrimSpace(text),
	}
}

func jsonObject(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// language tag such as ```json
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}

	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	return s, true
}
