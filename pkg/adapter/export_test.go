package adapter

import "google.golang.org/genai"

func (g *GeminiCompleter) GenerateConfig(req *CompletionRequest) (*genai.GenerateContentConfig, error) {
	return g.generateConfig(req)
}
