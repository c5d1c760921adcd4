package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/kohr2/dashboard-killer-graph-sub005/config"
	"github.com/kohr2/dashboard-killer-graph-sub005/extract"
	"github.com/kohr2/dashboard-killer-graph-sub005/extract/llm"
	"github.com/kohr2/dashboard-killer-graph-sub005/extract/nlpclient"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph/badgerstore"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph/memstore"
	"github.com/kohr2/dashboard-killer-graph-sub005/graph/sqlstore"
	"github.com/kohr2/dashboard-killer-graph-sub005/health"
	"github.com/kohr2/dashboard-killer-graph-sub005/metric"
	"github.com/kohr2/dashboard-killer-graph-sub005/ontology"
	"github.com/kohr2/dashboard-killer-graph-sub005/pipeline"
	"github.com/kohr2/dashboard-killer-graph-sub005/relationships"
	"github.com/kohr2/dashboard-killer-graph-sub005/source/filesource"
	"github.com/kohr2/dashboard-killer-graph-sub005/source/natssource"
)

func main() {
	app := &cli.App{
		Name:  "kgraph",
		Usage: "Ontology-driven knowledge graph ingestion engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the engine configuration file",
				Value:   "kgraph.yaml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Run the ingestion pipeline over all configured sources",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Keep running and trigger runs on the configured schedule",
					},
				},
			},
			{
				Name:   "schema",
				Usage:  "Print the loaded ontology schema",
				Action: schemaCommand,
			},
			{
				Name:   "patterns",
				Usage:  "List configured advanced-relationship patterns for an ontology",
				Action: patternsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ontology", Required: true},
					&cli.StringFlag{
						Name:  "family",
						Usage: "temporal, hierarchical, similarity, or complex",
						Value: relationships.FamilyTemporal,
					},
				},
			},
			{
				Name:   "analyze",
				Usage:  "Run a relationship analysis over the stored graph",
				Action: analyzeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ontology", Required: true},
					&cli.StringFlag{
						Name:  "type",
						Usage: "temporal_sequences, hierarchy_statistics, or similarity_clusters",
						Value: relationships.AnalysisTemporalSequences,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// runtime holds the wired engine pieces a command needs.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *ontology.Registry
	store     graph.Store
	writer    *graph.Writer
	engine    *relationships.Engine
	metrics   *metric.Metrics
	registrar *metric.MetricsRegistry
}

func setup(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	registry := ontology.NewRegistry(logger)
	if cfg.OntologyDir != "" {
		if err := registry.LoadFromDirectory(cfg.OntologyDir); err != nil {
			return nil, err
		}
	}

	store, err := openStore(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	var metrics *metric.Metrics
	var registrar *metric.MetricsRegistry
	if cfg.Metrics.Enabled {
		registrar = metric.NewMetricsRegistry()
		metrics = registrar.CoreMetrics()
	}

	writer := graph.NewWriter(store, registry, nil, logger)
	engine := relationships.NewEngine(store, registry, logger, metrics)

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		store:     store,
		writer:    writer,
		engine:    engine,
		metrics:   metrics,
		registrar: registrar,
	}, nil
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func openStore(cfg config.StorageConfig, logger *slog.Logger) (graph.Store, error) {
	switch cfg.Backend {
	case config.StorageSQLite:
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		return sqlstore.Open(path)
	case config.StorageBadger:
		return badgerstore.Open(cfg.Path, logger)
	default:
		return memstore.New(), nil
	}
}

func buildExtractor(cfg config.ExtractorConfig, registry *ontology.Registry, logger *slog.Logger) (extract.Extractor, error) {
	switch cfg.Backend {
	case config.ExtractorRegex:
		return extract.NewRegex(), nil
	case config.ExtractorNLP:
		return nlpclient.New(nlpclient.Config{
			BaseURL:           cfg.ServiceURL,
			APIKey:            cfg.APIKey,
			Ontology:          cfg.Ontology,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger)
	case config.ExtractorLLM:
		return llm.New(llm.Config{
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
		}, registry, logger)
	default:
		return extract.Noop{}, nil
	}
}

func buildSources(cfg config.SourcesConfig, logger *slog.Logger) ([]pipeline.Source, error) {
	var sources []pipeline.Source
	for _, fc := range cfg.Files {
		src, err := filesource.New(fc, logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	for _, nc := range cfg.NATS {
		src, err := natssource.New(nc, logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func ingestCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	extractor, err := buildExtractor(rt.cfg.Extractor, rt.registry, rt.logger)
	if err != nil {
		return err
	}
	sources, err := buildSources(rt.cfg.Sources, rt.logger)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources configured")
	}

	if rt.cfg.Metrics.Enabled {
		monitor := health.NewMonitor()
		monitor.Register("store", func(ctx context.Context) error {
			_, err := rt.store.NodesByLabel(ctx, "Thing")
			return err
		})
		for _, src := range sources {
			src := src
			monitor.Register("source-"+src.ID(), src.HealthCheck)
		}

		metricServer := metric.NewServer(rt.cfg.Metrics.Port, rt.cfg.Metrics.Path, rt.registrar)
		metricServer.SetHealthHandler(monitor.Handler())
		go func() {
			if err := metricServer.Start(); err != nil {
				rt.logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() { _ = metricServer.Stop() }()
		rt.logger.Info("metrics exposed", "address", metricServer.Address())
	}

	opts := pipeline.Options{
		Extractor: extractor,
		Engine:    rt.engine,
		Metrics:   rt.metrics,
		Logger:    rt.logger,
	}

	if c.Bool("watch") {
		return runWatch(c.Context, rt, opts, sources)
	}

	runner := pipeline.NewBatchRunner(rt.registry, rt.writer, rt.cfg.Pipeline.Concurrency, opts)
	results, err := runner.RunAll(c.Context, sources)
	if err != nil {
		return err
	}
	return printResults(results)
}

// runWatch triggers per-source runs on the configured cron schedule until
// the process receives SIGINT or SIGTERM.
func runWatch(ctx context.Context, rt *runtime, opts pipeline.Options, sources []pipeline.Source) error {
	expr := rt.cfg.Pipeline.Schedule
	if expr == "" {
		return fmt.Errorf("watch mode requires pipeline.schedule")
	}

	scheduler := pipeline.NewScheduler(rt.logger)
	for _, src := range sources {
		orch := pipeline.NewOrchestrator(rt.registry, rt.writer, opts)
		if err := scheduler.Schedule(expr, orch, src); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	rt.logger.Info("watch mode started", "schedule", expr, "sources", len(sources))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	rt.logger.Info("watch mode stopping")
	return nil
}

func schemaCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	fmt.Println(rt.registry.SchemaRepresentation())
	return nil
}

func patternsCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	patterns, err := rt.engine.QueryOntologyPatterns(c.String("ontology"), c.String("family"))
	if err != nil {
		return err
	}
	return printJSON(patterns)
}

func analyzeCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	result, err := rt.engine.ExecuteOntologyAnalysis(c.Context, c.String("ontology"), c.String("type"))
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printResults(results []pipeline.SourceResult) error {
	type summary struct {
		SourceID string           `json:"source_id"`
		Error    string           `json:"error,omitempty"`
		Result   *pipeline.Result `json:"result,omitempty"`
	}
	out := make([]summary, 0, len(results))
	failed := 0
	for _, r := range results {
		s := summary{SourceID: r.SourceID, Result: r.Result}
		if r.Err != nil {
			s.Error = r.Err.Error()
			failed++
		}
		out = append(out, s)
	}
	if err := printJSON(out); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(results))
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
