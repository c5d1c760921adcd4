package llm_test

import (
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/extract/llm"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
)

// fakeModel returns canned responses in order, repeating the last one.
type fakeModel struct {
	responses []string
	calls     int
	prompts   []string
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				f.prompts = append(f.prompts, text.Text)
			}
		}
	}
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.responses[idx]}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func testRegistry(t *testing.T) *ontology.Registry {
	t.Helper()
	registry := ontology.NewRegistry(slog.Default())
	require.NoError(t, registry.LoadFromObjects([]*ontology.Definition{{
		Name: "financial",
		Entities: map[string]ontology.EntitySchema{
			"Investor":     {Description: "An investing entity"},
			"Organization": {},
		},
		Relationships: map[string]ontology.RelationshipSchema{
			"INVESTS_IN": {Domain: ontology.TypeList{"Investor"}, Range: ontology.TypeList{"Organization"}},
		},
	}}))
	return registry
}

func TestExtractParsesGraph(t *testing.T) {
	model := &fakeModel{responses: []string{
		`{"entities":[{"value":"Acme Capital","type":"Investor","confidence":0.9},
		  {"value":"Globex","type":"Organization","confidence":0.85}],
		  "relationships":[{"type":"INVESTS_IN","source":"Acme Capital","target":"Globex","confidence":0.8}]}`,
	}}
	extractor := llm.NewWithModel(model, testRegistry(t), nil)

	result, err := extractor.Extract(context.Background(), "Acme Capital led the round in Globex.")
	require.NoError(t, err)

	require.Len(t, result.Entities, 2)
	assert.Equal(t, "Acme Capital", result.Entities[0].Value)
	assert.Equal(t, "Investor", result.Entities[0].Type)
	require.Len(t, result.Relationships, 1)
	assert.Equal(t, "INVESTS_IN", result.Relationships[0].Type)
}

func TestExtractEmbedsSchemaInPrompt(t *testing.T) {
	model := &fakeModel{responses: []string{`{"entities":[],"relationships":[]}`}}
	extractor := llm.NewWithModel(model, testRegistry(t), nil)

	_, err := extractor.Extract(context.Background(), "text")
	require.NoError(t, err)

	require.NotEmpty(t, model.prompts)
	system := model.prompts[0]
	assert.Contains(t, system, "Investor")
	assert.Contains(t, system, "INVESTS_IN")
}

func TestExtractStripsCodeFences(t *testing.T) {
	model := &fakeModel{responses: []string{
		"```json\n{\"entities\":[{\"value\":\"Jane\",\"type\":\"Investor\",\"confidence\":0.7}],\"relationships\":[]}\n```",
	}}
	extractor := llm.NewWithModel(model, testRegistry(t), nil)

	result, err := extractor.Extract(context.Background(), "Jane invests.")
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Jane", result.Entities[0].Value)
}

func TestExtractRetriesMalformedJSON(t *testing.T) {
	model := &fakeModel{responses: []string{
		`{"entities": broken`,
		`{"entities":[{"value":"Globex","type":"Organization","confidence":0.8}],"relationships":[]}`,
	}}
	extractor := llm.NewWithModel(model, testRegistry(t), nil)

	result, err := extractor.Extract(context.Background(), "Globex announced earnings.")
	require.NoError(t, err)
	assert.Equal(t, 2, model.calls)
	require.Len(t, result.Entities, 1)
}

func TestExtractFailsAfterThreeMalformedResponses(t *testing.T) {
	model := &fakeModel{responses: []string{`not json at all`}}
	extractor := llm.NewWithModel(model, testRegistry(t), nil)

	_, err := extractor.Extract(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, 3, model.calls)
	assert.True(t, stderrors.Is(err, errors.ErrParsingFailed))
}

func TestExtractRejectsEmptyText(t *testing.T) {
	extractor := llm.NewWithModel(&fakeModel{responses: []string{"{}"}}, testRegistry(t), nil)

	_, err := extractor.Extract(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrEmptyContent))
}

func TestExtractDropsIncompleteRows(t *testing.T) {
	model := &fakeModel{responses: []string{
		`{"entities":[{"value":"","type":"Investor"},{"value":"Globex","type":"Organization","confidence":0.8}],
		  "relationships":[{"type":"INVESTS_IN","source":"","target":"Globex"}]}`,
	}}
	extractor := llm.NewWithModel(model, testRegistry(t), nil)

	result, err := extractor.Extract(context.Background(), "text")
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Empty(t, result.Relationships)
}
