package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"ragengine/internal/port"
)

// RateLimited throttles calls to an Embedder with a token bucket.
type RateLimited struct {
	next    port.Embedder
	limiter *rate.Limiter
}

// NewRateLimited wraps next to allow at most perSecond calls per second.
// perSecond <= 0 returns next unchanged.
func NewRateLimited(next port.Embedder, perSecond float64) port.Embedder {
	if perSecond <= 0 {
		return next
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit: %w", err)
	}
	return r.next.Embed(ctx, texts)
}

func (r *RateLimited) Dimension() int {
	return r.next.Dimension()
}

func (r *RateLimited) ModelName() string {
	return r.next.ModelName()
}
