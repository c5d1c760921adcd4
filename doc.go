// Package kgraph is an ontology-driven knowledge-graph ingestion engine.
//
// The engine pulls raw documents from configured sources (directories of
// files, JetStream streams), normalizes them into a common item shape,
// extracts entities and relationships through a pluggable NLP backend,
// detects which loaded ontologies each item touches, and persists the
// result as a multi-label property graph. After a run, configured
// advanced-relationship families derive additional edges: temporal
// sequences, containment hierarchies, similarity links, and
// store-specific complex patterns.
//
// # Layout
//
//   - ontology:      definition registry, schema types, ontology detection
//   - normalize:     raw payload to canonical item conversion
//   - extract:       extraction contract plus NLP-service and LLM backends
//   - graph:         store interface, label-safe writer, memory/SQLite/Badger backends
//   - relationships: advanced relationship engine and analysis queries
//   - pipeline:      run orchestration, batching, scheduling
//   - source:        file and JetStream sources
//   - enrich:        enrichment plugin registry
//   - config:        YAML engine configuration
//   - metric:        Prometheus metrics and the metrics/health endpoint
//   - errors:        classified errors shared across components
//
// The kgraph command in cmd/kgraph wires these into a CLI.
package kgraph
