// Package retry runs operations again after transient failures.
//
// Image fetches and search requests fail in ways that often clear up on a
// second try: dropped connections, 429s and 5xx responses. Do and
// DoWithResult retry those, backing off between attempts, and give up
// immediately on failures that will not change (404s, validation errors,
// cancellation).
//
//	data, err := retry.DoWithResult(func() ([]byte, error) {
//	    return fetchOnce(ctx, url)
//	}, &retry.Config{
//	    MaxAttempts: 3,
//	    Backoff:     retry.DefaultExponentialBackoff(),
//	    Context:     ctx,
//	})
//
// NewHTTPRetrier picks the backoff from the failure itself so a rate
// limited search waits longer than a reset connection.
package retry
