package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ragengine/internal/port"
)

var errEmptyEmbedding = errors.New("embedder returned no vector")

// embedOne embeds a single text through the batch Embedder port.
func embedOne(ctx context.Context, embedder port.Embedder, timeout time.Duration, text string) ([]float32, error) {
	vectors, err := callStep(ctx, timeout, func(ctx context.Context) ([][]float32, error) {
		return embedder.Embed(ctx, []string{text})
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w (got %d vectors)", errEmptyEmbedding, len(vectors))
	}
	return vectors[0], nil
}
