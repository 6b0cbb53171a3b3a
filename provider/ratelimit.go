package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to an inner extractor.
type RateLimited struct {
	inner   Extractor
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a token bucket.
func NewRateLimited(inner Extractor, requestsPerSecond float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (r *RateLimited) Name() string { return r.inner.Name() }

// Extract waits for a token, then delegates. A cancelled context while waiting
// is returned as an error without calling the provider.
func (r *RateLimited) Extract(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s rate limit wait: %w", r.inner.Name(), err)
	}
	return r.inner.Extract(ctx, req)
}

func (r *RateLimited) Close() error { return Close(r.inner) }
