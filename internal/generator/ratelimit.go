package generator

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// #region rate-limited
// RateLimited throttles calls to an inner generator.
type RateLimited struct {
	inner   TextGenerator
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond calls per second with the given burst.
// A non-positive rate disables throttling.
func NewRateLimited(inner TextGenerator, perSecond float64, burst int) *RateLimited {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(limit, max(1, burst))}
}

func (r *RateLimited) Rewrite(ctx context.Context, prompt string, score float64, feedback string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return r.inner.Rewrite(ctx, prompt, score, feedback)
}
// #endregion rate-limited
