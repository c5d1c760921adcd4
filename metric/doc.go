// Package metric provides Prometheus-based metrics collection and an HTTP
// server for observing ingestion runs.
//
// The package offers a centralized metrics registry managing both core
// engine metrics (run status, item outcomes, graph write counts, derived
// relationship counts) and custom component-specific metrics. It includes
// an HTTP server exposing metrics in Prometheus format.
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//
//	core := registry.CoreMetrics()
//	core.RecordItemProcessed("email", true)
//	core.RecordEntitiesCreated("email", 12)
//	core.RecordAdvancedRelationships("temporal", "financial", 3)
//
// Metrics are exposed at http://localhost:9090/metrics with a health check
// at /health.
//
// # Component Metrics
//
// Components register their own collectors through the MetricsRegistrar
// interface; names are namespaced as component.metric and duplicates are
// rejected:
//
//	fetched := prometheus.NewCounter(prometheus.CounterOpts{
//	    Name: "kgraph_source_items_fetched_total",
//	    Help: "Items fetched from the source",
//	})
//	if err := registry.RegisterCounter("filesource", "items_fetched", fetched); err != nil {
//	    return err
//	}
package metric
