// Package llm extracts entities and relationships with an OpenAI-compatible
// chat model. The ontology registry's schema rendering is embedded in the
// system prompt so the model only emits types the graph can hold.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/extract"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
)

// Config holds the chat-model connection settings.
type Config struct {
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model"`
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "llm", "Validate", "model is required")
	}
	return nil
}

// Extractor implements extract.Extractor over a chat model.
type Extractor struct {
	client   llms.Model
	registry *ontology.Registry
	logger   *slog.Logger
}

var _ extract.Extractor = (*Extractor)(nil)

// graphResponse matches the JSON the model is prompted to emit.
type graphResponse struct {
	Entities []struct {
		Value      string         `json:"value"`
		Type       string         `json:"type"`
		Confidence float64        `json:"confidence"`
		Properties map[string]any `json:"properties,omitempty"`
	} `json:"entities"`
	Relationships []struct {
		Type       string  `json:"type"`
		Source     string  `json:"source"`
		Target     string  `json:"target"`
		Confidence float64 `json:"confidence"`
	} `json:"relationships"`
}

// New builds an Extractor with an OpenAI-compatible client.
func New(cfg Config, registry *ontology.Registry, logger *slog.Logger) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	token := cfg.APIKey
	if token == "" {
		// local OpenAI-compatible services accept any token
		token = "none"
	}
	opts = append(opts, openai.WithToken(token))

	client, err := openai.New(opts...)
	if err != nil {
		return nil, errors.WrapFatal(err, "llm", "New", "create chat client")
	}
	return NewWithModel(client, registry, logger), nil
}

// NewWithModel builds an Extractor around an existing model, letting tests
// inject a fake.
func NewWithModel(client llms.Model, registry *ontology.Registry, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		client:   client,
		registry: registry,
		logger:   logger.With("component", "llm-extractor"),
	}
}

// Extract implements extract.Extractor.
func (e *Extractor) Extract(ctx context.Context, text string) (*extract.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.WrapInvalid(errors.ErrEmptyContent, "llm", "Extract", "empty input text")
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(e.systemPrompt()),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var parsed graphResponse
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			return nil, errors.WrapTransient(err, "llm", "Extract", "generate content")
		}
		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return &extract.Result{}, nil
		}

		responseText := stripFences(response.Choices[0].Content)
		if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
			lastErr = err
			e.logger.Warn("error parsing model response",
				"attempt", attempt+1,
				"err", err)
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, lastErr),
			"llm", "Extract", "parse model response after retries")
	}

	result := &extract.Result{}
	for _, ent := range parsed.Entities {
		if ent.Value == "" || ent.Type == "" {
			continue
		}
		result.Entities = append(result.Entities, extract.Entity{
			Value:      ent.Value,
			Type:       ent.Type,
			Confidence: ent.Confidence,
			Properties: ent.Properties,
		})
	}
	for _, rel := range parsed.Relationships {
		if rel.Type == "" || rel.Source == "" || rel.Target == "" {
			continue
		}
		result.Relationships = append(result.Relationships, extract.Relationship{
			Type:       rel.Type,
			From:       rel.Source,
			To:         rel.Target,
			Confidence: rel.Confidence,
		})
	}

	e.logger.Debug("graph extracted",
		"entities", len(result.Entities),
		"relationships", len(result.Relationships))
	return result, nil
}

func (e *Extractor) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You extract a knowledge graph from text.\n")
	b.WriteString("Use only the entity and relationship types below.\n\n")
	b.WriteString(e.registry.SchemaRepresentation())
	b.WriteString("\nRespond with JSON only, shaped as:\n")
	b.WriteString(`{"entities":[{"value":"...","type":"...","confidence":0.0}],` +
		`"relationships":[{"type":"...","source":"...","target":"...","confidence":0.0}]}`)
	return b.String()
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
