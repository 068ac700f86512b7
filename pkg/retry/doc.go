// Package retry retries operations that fail for transient reasons.
//
// Only transport failures, HTTP 429 and 5xx responses are retried by default;
// abort-class errors from the API layer and context cancellation end the loop
// immediately. Attempts are spaced by github.com/cenkalti/backoff/v4.
//
//	policy := retry.FromConfig(cfg.Retry, log)
//	body, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
//		return fetch(ctx, url)
//	}, policy)
package retry
