package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type GeminiCompleter struct {
	client         *genai.Client
	model          string
	thinkingBudget int32
}

var _ Completer = (*GeminiCompleter)(nil)

type geminiConfig struct {
	apiKey         string
	project        string
	location       string
	model          string
	thinkingBudget int32
}

type GeminiOption func(*geminiConfig)

func WithGeminiModel(model string) GeminiOption {
	return func(c *geminiConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithGeminiThinkingBudget allows the model to think for up to budget tokens.
// The budget is added on top of the request's MaxTokens. The default 0
// disables thinking.
func WithGeminiThinkingBudget(budget int32) GeminiOption {
	return func(c *geminiConfig) {
		c.thinkingBudget = max(budget, 0)
	}
}

// WithGeminiAPIKey uses the Gemini Developer API
func WithGeminiAPIKey(apiKey string) GeminiOption {
	return func(c *geminiConfig) {
		c.apiKey = apiKey
	}
}

// WithGeminiVertex uses Vertex AI with application default credentials
func WithGeminiVertex(project, location string) GeminiOption {
	return func(c *geminiConfig) {
		c.project = project
		c.location = location
	}
}

func NewGemini(ctx context.Context, opts ...GeminiOption) (*GeminiCompleter, error) {
	cfg := &geminiConfig{
		model:    DefaultGeminiModel,
		location: "us-central1",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	cc := &genai.ClientConfig{}
	switch {
	case cfg.apiKey != "":
		cc.APIKey = cfg.apiKey
		cc.Backend = genai.BackendGeminiAPI
	case cfg.project != "":
		cc.Project = cfg.project
		cc.Location = cfg.location
		cc.Backend = genai.BackendVertexAI
	default:
		return nil, goerr.New("gemini API key or project is required")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	return &GeminiCompleter{client: client, model: cfg.model, thinkingBudget: cfg.thinkingBudget}, nil
}

func (g *GeminiCompleter) Model() string { return g.model }

func (g *GeminiCompleter) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	config, err := g.generateConfig(req)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", classifyGeminiError(err, g.model)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", goerr.Wrap(ErrEmptyCompletion, "gemini returned no text", goerr.V("model", g.model))
	}
	return text, nil
}

// generateConfig builds the call config. Thinking tokens count against
// MaxOutputTokens on 2.5 models, so the thinking budget is always explicit and
// reserved in addition to req.MaxTokens.
func (g *GeminiCompleter) generateConfig(req *CompletionRequest) (*genai.GenerateContentConfig, error) {
	thinkingBudget := g.thinkingBudget
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens) + thinkingBudget,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, "")
	}
	if req.Schema != nil {
		schema, err := convertJSONSchemaToGenai(req.Schema)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert response schema")
		}
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}
	return config, nil
}

func classifyGeminiError(err error, model string) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if classified := classifyStatus(apiErr.Code, apiErr.Message,
			goerr.V("model", model),
			goerr.V("status_text", apiErr.Status),
		); classified != nil {
			return classified
		}
	}
	return goerr.Wrap(err, "failed to generate content", goerr.V("model", model))
}

// convertJSONSchemaToGenai converts JSON Schema to Gemini genai.Schema
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	out := &genai.Schema{}

	switch schema.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		if schema.Type != "" {
			return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
		}
	}

	out.Description = schema.Description

	for _, v := range schema.Enum {
		if s, ok := v.(string); ok {
			out.Enum = append(out.Enum, s)
		}
	}

	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(prop)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema", goerr.V("property", name))
			}
			out.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		out.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		out.Items = converted
	}

	return out, nil
}
