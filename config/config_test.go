package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, ExtractorNoop, cfg.Extractor.Backend)
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
}

func TestValidate_RegexExtractor(t *testing.T) {
	cfg := Default()
	cfg.Extractor.Backend = ExtractorRegex
	require.NoError(t, cfg.Validate())
}

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
ontology_dir: ./ontologies
storage:
  backend: sqlite
  path: /var/lib/kgraph/graph.db
extractor:
  backend: nlp
  service_url: http://localhost:8000
  timeout: 45s
  requests_per_second: 10
pipeline:
  concurrency: 4
  schedule: "0 * * * *"
sources:
  files:
    - id: inbox
      path: /var/spool/kgraph
  nats:
    - url: nats://localhost:4222
      stream: INGEST
      durable: kgraph-worker
metrics:
  enabled: true
  port: 9100
logging:
  level: debug
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, "./ontologies", cfg.OntologyDir)
	assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
	assert.Equal(t, 45*time.Second, cfg.Extractor.Timeout)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	require.Len(t, cfg.Sources.Files, 1)
	require.Len(t, cfg.Sources.NATS, 1)
	assert.Equal(t, 9100, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("KGRAPH_NLP_KEY", "secret-token")
	cfg, err := Parse([]byte(`
extractor:
  backend: nlp
  service_url: http://localhost:8000
  api_key: ${KGRAPH_NLP_KEY}
`))
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Extractor.APIKey)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown storage backend", func(c *Config) { c.Storage.Backend = "neo4j" }},
		{"unknown extractor backend", func(c *Config) { c.Extractor.Backend = "spacy" }},
		{"nlp without url", func(c *Config) { c.Extractor.Backend = ExtractorNLP }},
		{"llm without model", func(c *Config) { c.Extractor.Backend = ExtractorLLM }},
		{"metrics port out of range", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 70000 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "logfmt" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ChecksSourceConfigs(t *testing.T) {
	cfg, err := Parse([]byte(`
sources:
  nats:
    - url: nats://localhost:4222
      stream: INGEST
`))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrMissingConfig))
	assert.Nil(t, cfg)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: badger\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StorageBadger, cfg.Storage.Backend)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/kgraph.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("storage: [not a map"))
	require.Error(t, err)
}

func TestValidate_ClampsConcurrency(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Concurrency = -3
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
}
