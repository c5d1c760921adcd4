package nlpclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/extract"
	"github.com/kohr2/dashboard-killer-graph-sub005/extract/nlpclient"
)

func fastRetry() *errors.RetryConfig {
	return &errors.RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func newClient(t *testing.T, url string) *nlpclient.Client {
	t.Helper()
	client, err := nlpclient.New(nlpclient.Config{
		BaseURL:           url,
		APIKey:            "secret-token",
		Ontology:          "financial",
		RequestsPerSecond: 1000,
		Retry:             fastRetry(),
	}, nil)
	require.NoError(t, err)
	return client
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := nlpclient.New(nlpclient.Config{}, nil)
	require.Error(t, err)
}

func TestExtractGraph(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/call", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"entities": []map[string]any{
				{"value": "Acme Capital", "type": "Investor", "confidence": 0.92},
				{"value": "Globex", "type": "Organization", "confidence": 0.88},
			},
			"relationships": []map[string]any{
				{"type": "INVESTS_IN", "source": "Acme Capital", "target": "Globex", "confidence": 0.8},
			},
		})
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	result, err := client.ExtractGraph(context.Background(), "Acme Capital invested in Globex.")
	require.NoError(t, err)

	assert.Equal(t, "extract_graph", gotBody["tool"])
	args := gotBody["arguments"].(map[string]any)
	assert.Equal(t, "financial", args["ontology_name"])

	require.Len(t, result.Entities, 2)
	assert.Equal(t, "Acme Capital", result.Entities[0].Value)
	assert.Equal(t, "Investor", result.Entities[0].Type)
	require.Len(t, result.Relationships, 1)
	assert.Equal(t, "INVESTS_IN", result.Relationships[0].Type)
	assert.Equal(t, "Globex", result.Relationships[0].To)
}

func TestExtractEntities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "extract_entities", body["tool"])

		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"value": "Jane Doe", "type": "PERSON_NAME", "confidence": 0.95},
		})
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	entities, err := client.ExtractEntities(context.Background(), "Jane Doe called.")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Jane Doe", entities[0].Value)
}

func TestServerErrorRetriedUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"entities": []any{}, "relationships": []any{}})
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	_, err := client.ExtractGraph(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad ontology", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	_, err := client.ExtractGraph(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBatchExtractGraph(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "batch_extract_graph", body["tool"])
		texts := body["arguments"].(map[string]any)["texts"].([]any)
		assert.Len(t, texts, 2)

		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"entities": []map[string]any{{"value": "A", "type": "Organization", "confidence": 0.9}}},
			{"entities": []map[string]any{{"value": "B", "type": "Organization", "confidence": 0.9}}},
		})
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	results, err := client.BatchExtractGraph(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Entities[0].Value)
	assert.Equal(t, "B", results[1].Entities[0].Value)
}

func TestGenerateEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float64{{0.1, 0.2}, {0.3, 0.4}})
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	vectors, err := client.GenerateEmbeddings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{0.1, 0.2}, vectors[0])
}

func TestHealth(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if healthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	require.NoError(t, client.Health(context.Background()))

	healthy = false
	require.Error(t, client.Health(context.Background()))
}

func TestClientImplementsExtractor(t *testing.T) {
	var _ extract.Extractor = (*nlpclient.Client)(nil)
}
