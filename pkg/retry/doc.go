// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// The ingestion engine talks to flaky collaborators: document sources, the
// external NLP service, and graph store backends. This package offers a
// minimal retry mechanism with exponential backoff and jitter for those
// call sites.
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Quick(): 10 attempts, 50ms-1s delay (source connection at run start)
//
// # Usage Examples
//
// Source connection with quick retries:
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//	    return source.Connect(ctx)
//	})
//
// NLP extraction with result:
//
//	result, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*extract.Result, error) {
//	    return client.ExtractEntities(ctx, text, ontologyName)
//	})
//
// Mark an error as non-retryable to fail immediately (e.g. HTTP 4xx from the
// NLP service):
//
//	return retry.NonRetryable(err)
//
// # Context Cancellation
//
// All retry operations respect context cancellation and stop immediately,
// both during operation execution and during backoff delay.
//
// # Thread Safety
//
// All functions are safe for concurrent use. The jitter mechanism uses a
// thread-safe random source to avoid contention.
package retry
