package pipeline

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohr2/dashboard-killer-graph-sub005/enrich"
	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/extract"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph/memstore"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
)

type fakeSource struct {
	mu            sync.Mutex
	id            string
	items         []json.RawMessage
	connectErr    error
	fetchErrAt    int // fetch index that fails; -1 never
	fetchErr      error
	disconnectErr error
	idx           int
	disconnects   int
}

func newFakeSource(id string, items ...json.RawMessage) *fakeSource {
	return &fakeSource{id: id, items: items, fetchErrAt: -1}
}

func (s *fakeSource) ID() string   { return s.id }
func (s *fakeSource) Type() string { return "fake" }

func (s *fakeSource) Connect(_ context.Context) error { return s.connectErr }

func (s *fakeSource) Fetch(_ context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErrAt >= 0 && s.idx == s.fetchErrAt {
		return nil, s.fetchErr
	}
	if s.idx >= len(s.items) {
		return nil, errors.ErrSourceExhausted
	}
	item := s.items[s.idx]
	s.idx++
	return item, nil
}

func (s *fakeSource) Disconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	return s.disconnectErr
}

func (s *fakeSource) HealthCheck(_ context.Context) error { return s.connectErr }

// scriptedExtractor returns one scripted result per call, in order. A nil
// entry makes that call fail.
type scriptedExtractor struct {
	mu      sync.Mutex
	calls   int
	results []*extract.Result
}

func (e *scriptedExtractor) Extract(_ context.Context, _ string) (*extract.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var res *extract.Result
	if e.calls < len(e.results) {
		res = e.results[e.calls]
	}
	e.calls++
	if res == nil {
		return nil, errors.WrapTransient(errors.ErrExtraction, "scripted", "Extract", "scripted failure")
	}
	return res, nil
}

func testRegistry(t *testing.T) *ontology.Registry {
	t.Helper()
	r := ontology.NewRegistry(slog.Default())
	require.NoError(t, r.LoadFromObjects([]*ontology.Definition{{
		Name:    "finance",
		Version: "1.0.0",
		Entities: map[string]ontology.EntitySchema{
			"Investor":     {KeyProperties: []string{"name"}},
			"Organization": {},
			"Deal":         {},
		},
		Relationships: map[string]ontology.RelationshipSchema{
			"INVESTS_IN": {
				Domain: ontology.TypeList{"Investor"},
				Range:  ontology.TypeList{"Organization", "Deal"},
			},
		},
	}}))
	return r
}

func testOrchestrator(t *testing.T, store graph.Store, opts Options) *Orchestrator {
	t.Helper()
	registry := testRegistry(t)
	writer := graph.NewWriter(store, registry, nil, slog.Default())
	return NewOrchestrator(registry, writer, opts)
}

func item(body string) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{"id": body, "body": body})
	return raw
}

func graphResult(entities []extract.Entity, rels ...extract.Relationship) *extract.Result {
	return &extract.Result{Entities: entities, Relationships: rels}
}

func TestRun_EmptySourceCompletesWithoutSuccess(t *testing.T) {
	orch := testOrchestrator(t, memstore.New(), Options{})
	source := newFakeSource("empty")

	result, err := orch.Run(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.ItemsProcessed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, source.disconnects)
}

func TestRun_PersistsEntitiesAndRelationships(t *testing.T) {
	store := memstore.New()
	extractor := &scriptedExtractor{results: []*extract.Result{
		graphResult(
			[]extract.Entity{
				{Value: "Acme Capital", Type: "Investor", Confidence: 0.95},
				{Value: "Widget Corp", Type: "Organization", Confidence: 0.9},
			},
			extract.Relationship{Type: "INVESTS_IN", From: "Acme Capital", To: "Widget Corp", Confidence: 0.8},
		),
	}}
	orch := testOrchestrator(t, store, Options{Extractor: extractor})

	result, err := orch.Run(context.Background(), newFakeSource("s1", item("acme invests in widget")))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ItemsProcessed)
	assert.Equal(t, 1, result.ItemsSucceeded)
	assert.Equal(t, 2, result.EntitiesCreated)
	assert.Equal(t, 1, result.RelationshipsCreated)
	assert.Equal(t, []string{"finance"}, result.DetectedOntologies)
	assert.Equal(t, 2, store.NodeCount())
	assert.Equal(t, 1, store.EdgeCount())
}

func TestRun_ItemFailureDoesNotAbortBatch(t *testing.T) {
	one := []extract.Entity{{Value: "Acme", Type: "Investor", Confidence: 0.9}}
	extractor := &scriptedExtractor{results: []*extract.Result{
		graphResult(one),
		nil, // second item fails during extraction
		graphResult(one),
	}}
	orch := testOrchestrator(t, memstore.New(), Options{Extractor: extractor})

	result, err := orch.Run(context.Background(),
		newFakeSource("s1", item("one"), item("two"), item("three")))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.ItemsProcessed)
	assert.Equal(t, 2, result.ItemsSucceeded)
	assert.Equal(t, 1, result.ItemsFailed)
	require.Len(t, result.Errors, 1)
	assert.NotEmpty(t, result.Errors[0].ItemID)
	assert.NotEmpty(t, result.Errors[0].Message)
	assert.False(t, result.Errors[0].Timestamp.IsZero())
}

func TestRun_ConnectFailureAborts(t *testing.T) {
	source := newFakeSource("s1", item("one"))
	source.connectErr = fmt.Errorf("dial tcp: connection refused")
	orch := testOrchestrator(t, memstore.New(), Options{})

	result, err := orch.Run(context.Background(), source)

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrSourceConnection))
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 0, result.ItemsProcessed)
	assert.Equal(t, 0, source.disconnects)
}

func TestRun_FetchFailureWithZeroSuccessesPropagates(t *testing.T) {
	source := newFakeSource("s1", item("one"))
	source.fetchErrAt = 0
	source.fetchErr = fmt.Errorf("stream reset")
	orch := testOrchestrator(t, memstore.New(), Options{})

	result, err := orch.Run(context.Background(), source)

	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.False(t, result.Success)
	assert.Equal(t, 1, source.disconnects)
}

func TestRun_FetchFailureAfterSuccessIsPartial(t *testing.T) {
	source := newFakeSource("s1", item("one"), item("two"))
	source.fetchErrAt = 1
	source.fetchErr = fmt.Errorf("stream reset")
	extractor := &scriptedExtractor{results: []*extract.Result{
		graphResult([]extract.Entity{{Value: "Acme", Type: "Investor", Confidence: 0.9}}),
	}}
	orch := testOrchestrator(t, memstore.New(), Options{Extractor: extractor})

	result, err := orch.Run(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ItemsSucceeded)
	assert.Equal(t, 1, source.disconnects)
}

func TestRun_DisconnectFailureIsSwallowed(t *testing.T) {
	source := newFakeSource("s1", item("one"))
	source.disconnectErr = fmt.Errorf("connection already closed")
	extractor := &scriptedExtractor{results: []*extract.Result{
		graphResult([]extract.Entity{{Value: "Acme", Type: "Investor", Confidence: 0.9}}),
	}}
	orch := testOrchestrator(t, memstore.New(), Options{Extractor: extractor})

	result, err := orch.Run(context.Background(), source)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, StateCompleted, result.State)
}

func TestRun_UnknownEntityTypeSkippedNotFatal(t *testing.T) {
	store := memstore.New()
	extractor := &scriptedExtractor{results: []*extract.Result{
		graphResult([]extract.Entity{
			{Value: "Acme", Type: "Investor", Confidence: 0.9},
			{Value: "???", Type: "Person; DROP", Confidence: 0.9},
		}),
	}}
	orch := testOrchestrator(t, store, Options{Extractor: extractor})

	result, err := orch.Run(context.Background(), newFakeSource("s1", item("one")))

	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsSucceeded)
	assert.Equal(t, 1, result.EntitiesCreated)
	assert.Equal(t, 1, store.NodeCount())
}

func TestRun_EnrichmentAppliedWhenConfigured(t *testing.T) {
	registry := ontology.NewRegistry(slog.Default())
	require.NoError(t, registry.LoadFromObjects([]*ontology.Definition{{
		Name:    "finance",
		Version: "1.0.0",
		Entities: map[string]ontology.EntitySchema{
			"Investor": {Enrichment: &ontology.EnrichmentSpec{Service: "registry-lookup"}},
		},
	}}))
	enrichers := enrich.NewRegistry()
	require.NoError(t, enrichers.Register(enrich.Func{
		ServiceName: "registry-lookup",
		Fn: func(_ context.Context, e extract.Entity) (extract.Entity, error) {
			if e.Properties == nil {
				e.Properties = map[string]any{}
			}
			e.Properties["registration_id"] = "LEI-123"
			return e, nil
		},
	}))

	store := memstore.New()
	writer := graph.NewWriter(store, registry, nil, slog.Default())
	extractor := &scriptedExtractor{results: []*extract.Result{
		graphResult([]extract.Entity{{Value: "Acme", Type: "Investor", Confidence: 0.9}}),
	}}
	orch := NewOrchestrator(registry, writer, Options{Extractor: extractor, Enrichers: enrichers})

	result, err := orch.Run(context.Background(), newFakeSource("s1", item("one")))

	require.NoError(t, err)
	require.Equal(t, 1, result.EntitiesCreated)
	nodes, err := store.NodesByLabel(context.Background(), "Investor")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "LEI-123", nodes[0].Properties["registration_id"])
}

func TestRun_StopEndsBeforeNextItem(t *testing.T) {
	orch := testOrchestrator(t, memstore.New(), Options{})
	stopper := &stopAfterFirst{orch: orch}
	orch.extractor = stopper

	result, err := orch.Run(context.Background(),
		newFakeSource("s1", item("one"), item("two"), item("three")))

	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsProcessed)
	assert.True(t, result.Success)
}

// stopAfterFirst requests Stop from inside the first extraction, so the
// current item still completes.
type stopAfterFirst struct {
	orch *Orchestrator
}

func (s *stopAfterFirst) Extract(_ context.Context, _ string) (*extract.Result, error) {
	s.orch.Stop()
	return graphResult([]extract.Entity{{Value: "Acme", Type: "Investor", Confidence: 0.9}}), nil
}

func TestRun_RejectsConcurrentRuns(t *testing.T) {
	orch := testOrchestrator(t, memstore.New(), Options{})
	gate := make(chan struct{})
	blocking := &blockingExtractor{gate: gate}
	orch.extractor = blocking

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = orch.Run(context.Background(), newFakeSource("s1", item("one")))
	}()

	<-blocking.started()
	_, err := orch.Run(context.Background(), newFakeSource("s2", item("two")))
	close(gate)
	<-done

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrAlreadyRunning))
}

type blockingExtractor struct {
	gate    chan struct{}
	once    sync.Once
	startCh chan struct{}
}

func (b *blockingExtractor) started() chan struct{} {
	b.once.Do(func() { b.startCh = make(chan struct{}) })
	return b.startCh
}

func (b *blockingExtractor) Extract(_ context.Context, _ string) (*extract.Result, error) {
	close(b.started())
	<-b.gate
	return graphResult(nil), nil
}

func TestRun_SetsRunMetadata(t *testing.T) {
	orch := testOrchestrator(t, memstore.New(), Options{})

	result, err := orch.Run(context.Background(), newFakeSource("meta"))

	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "meta", result.SourceID)
	assert.Equal(t, "fake", result.SourceType)
	assert.False(t, result.StartedAt.IsZero())
	assert.GreaterOrEqual(t, result.Duration, time.Duration(0))
}
