// Package nlpclient is the HTTP client for the external NLP service. The
// service exposes a single tool-dispatch endpoint: POST /call with a JSON
// body naming the tool and its arguments, plus GET /health. Requests are
// rate limited, authenticated with a bearer token when configured, and
// retried with exponential backoff. Server-side failures (5xx) retry;
// client-side failures (4xx) do not.
package nlpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/extract"
	"github.com/kohr2/dashboard-killer-graph-sub005/pkg/retry"
)

// Tool names understood by the NLP service.
const (
	toolExtractEntities    = "extract_entities"
	toolRefineEntities     = "refine_entities"
	toolExtractGraph       = "extract_graph"
	toolBatchExtractGraph  = "batch_extract_graph"
	toolGenerateEmbeddings = "generate_embeddings"
)

// Config holds the NLP service connection settings.
type Config struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key,omitempty"`
	// Ontology is sent as ontology_name with graph extraction calls so
	// the service scopes its schema prompt.
	Ontology string `json:"ontology,omitempty"`
	// Timeout bounds one HTTP request. Defaults to 30s.
	Timeout time.Duration `json:"timeout,omitempty"`
	// RequestsPerSecond throttles outbound calls. Defaults to 5.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	// Retry overrides the default backoff settings.
	Retry *errors.RetryConfig `json:"retry,omitempty"`
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "nlpclient", "Validate", "base_url is required")
	}
	return nil
}

// Client talks to the NLP service.
type Client struct {
	baseURL    string
	apiKey     string
	ontology   string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCfg   retry.Config
	logger     *slog.Logger
}

var _ extract.Extractor = (*Client)(nil)

// New builds a Client from cfg.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	retryCfg := retry.DefaultConfig()
	if cfg.Retry != nil {
		retryCfg = cfg.Retry.ToRetryConfig()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		ontology:   cfg.Ontology,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		retryCfg:   retryCfg,
		logger:     logger,
	}, nil
}

type callRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// wireEntity is the service's entity shape.
type wireEntity struct {
	ID         string         `json:"id,omitempty"`
	Value      string         `json:"value"`
	Type       string         `json:"type"`
	Label      string         `json:"label,omitempty"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties,omitempty"`
}

type wireRelationship struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"`
	From       string         `json:"source"`
	To         string         `json:"target"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties,omitempty"`
}

type wireGraph struct {
	Entities      []wireEntity       `json:"entities"`
	Relationships []wireRelationship `json:"relationships"`
}

// call posts one tool invocation and decodes the response body into out.
func (c *Client) call(ctx context.Context, tool string, args map[string]any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.WrapTransient(err, "nlpclient", "call", "await rate limiter")
	}

	body, err := json.Marshal(callRequest{Tool: tool, Arguments: args})
	if err != nil {
		return errors.WrapInvalid(err, "nlpclient", "call", "encode request")
	}

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
		if err != nil {
			return retry.NonRetryable(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("nlp service %s returned %d: %s", tool, resp.StatusCode, truncate(payload))
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: nlp service throttled %s", errors.ErrRateLimited, tool)
		case resp.StatusCode >= 400:
			return retry.NonRetryable(fmt.Errorf("nlp service %s returned %d: %s", tool, resp.StatusCode, truncate(payload)))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return retry.NonRetryable(fmt.Errorf("decode %s response: %w", tool, err))
		}
		return nil
	}

	if err := retry.Do(ctx, c.retryCfg, attempt); err != nil {
		return errors.WrapTransient(err, "nlpclient", "call", "invoke tool "+tool)
	}
	return nil
}

func truncate(payload []byte) string {
	const limit = 200
	s := string(payload)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return errors.WrapInvalid(err, "nlpclient", "Health", "build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WrapTransient(err, "nlpclient", "Health", "probe service")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.WrapTransient(
			fmt.Errorf("health endpoint returned %d", resp.StatusCode),
			"nlpclient", "Health", "probe service")
	}
	return nil
}

// ExtractEntities runs plain entity extraction over text.
func (c *Client) ExtractEntities(ctx context.Context, text string) ([]extract.Entity, error) {
	var wire []wireEntity
	err := c.call(ctx, toolExtractEntities, map[string]any{"text": text}, &wire)
	if err != nil {
		return nil, err
	}
	return toEntities(wire), nil
}

// RefineEntities asks the service to refine previously extracted entities
// against their source text.
func (c *Client) RefineEntities(ctx context.Context, entities []extract.Entity, text string) ([]extract.Entity, error) {
	var wire []wireEntity
	err := c.call(ctx, toolRefineEntities, map[string]any{
		"entities": entities,
		"text":     text,
	}, &wire)
	if err != nil {
		return nil, err
	}
	return toEntities(wire), nil
}

// ExtractGraph runs combined entity and relationship extraction.
func (c *Client) ExtractGraph(ctx context.Context, text string) (*extract.Result, error) {
	args := map[string]any{"text": text}
	if c.ontology != "" {
		args["ontology_name"] = c.ontology
	}
	var wire wireGraph
	if err := c.call(ctx, toolExtractGraph, args, &wire); err != nil {
		return nil, err
	}
	return toResult(wire), nil
}

// BatchExtractGraph extracts graphs for several texts in one call.
func (c *Client) BatchExtractGraph(ctx context.Context, texts []string) ([]*extract.Result, error) {
	args := map[string]any{"texts": texts}
	if c.ontology != "" {
		args["ontology_name"] = c.ontology
	}
	var wire []wireGraph
	if err := c.call(ctx, toolBatchExtractGraph, args, &wire); err != nil {
		return nil, err
	}
	out := make([]*extract.Result, len(wire))
	for i, g := range wire {
		out[i] = toResult(g)
	}
	return out, nil
}

// GenerateEmbeddings returns one vector per input text.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	var vectors [][]float64
	if err := c.call(ctx, toolGenerateEmbeddings, map[string]any{"texts": texts}, &vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Extract implements extract.Extractor over the graph extraction tool.
func (c *Client) Extract(ctx context.Context, text string) (*extract.Result, error) {
	return c.ExtractGraph(ctx, text)
}

func toEntities(wire []wireEntity) []extract.Entity {
	out := make([]extract.Entity, len(wire))
	for i, e := range wire {
		out[i] = extract.Entity{
			ID:         e.ID,
			Value:      e.Value,
			Type:       e.Type,
			Label:      e.Label,
			Confidence: e.Confidence,
			Properties: e.Properties,
		}
	}
	return out
}

func toResult(wire wireGraph) *extract.Result {
	result := &extract.Result{Entities: toEntities(wire.Entities)}
	for _, r := range wire.Relationships {
		result.Relationships = append(result.Relationships, extract.Relationship{
			ID:         r.ID,
			Type:       r.Type,
			From:       r.From,
			To:         r.To,
			Confidence: r.Confidence,
			Properties: r.Properties,
		})
	}
	return result
}
