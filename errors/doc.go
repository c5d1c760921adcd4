// Package errors provides standardized error handling for the knowledge-graph
// ingestion engine.
//
// # Error Classification
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (bad input, non-retryable), and Fatal (unrecoverable, stop processing).
// Classification enables the pipeline to decide whether an item failure is
// recorded and skipped, retried, or aborts the run, without string matching
// at call sites.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Orchestrator", "connect", "source dial")
//	errors.WrapInvalid(err, "Registry", "LoadFromFile", "definition decode")
//	errors.WrapFatal(err, "Store", "UpsertNode", "schema init")
//
// # Run Error Taxonomy
//
// The pipeline's failure model maps onto this package as follows:
//
//   - Source connection failures wrap ErrSourceConnection and abort the run.
//     Mid-run fetch failures abort only when zero items have succeeded;
//     otherwise the run completes as a partial success.
//   - Per-item failures are captured as ItemError values in the run result;
//     the batch never aborts because of them.
//   - Advanced relationship failures are wrapped transient and logged as
//     warnings, never propagated.
//   - ErrOntologyNotFound, ErrUnknownPatternType, and ErrUnknownAnalysisType
//     are returned synchronously by the read-only relationship APIs.
//   - Disconnect failures wrap ErrDisconnect and are swallowed after logging.
//
// # Integration with errors.Is/As
//
// All error types support standard library inspection; classification is
// preserved through wrap chains:
//
//	wrapped := errors.WrapTransient(err, "Source", "Connect", "dial")
//	if errors.IsTransient(wrapped) { // true
//	    // retry with backoff
//	}
//
// The RetryConfig type converts to the pkg/retry Config via ToRetryConfig for
// use with the retry framework.
package errors
