// Package resilience guards calls to slow or flaky backends.
//
//   - Bulkhead bounds how many conversions run at once.
//   - Retry re-attempts retryable transcription failures.
//   - CircuitBreaker fails fast while a transcription backend is down.
//
// A transcription call typically composes the last two:
//
//	res, err := resilience.Retry(ctx, retryCfg, func() (*Result, error) {
//	    return resilience.ExecuteBreaker(cb, func() (*Result, error) {
//	        return backend.Transcribe(ctx, req)
//	    })
//	})
package resilience
