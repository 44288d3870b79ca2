package reranker

import (
	"context"
	"sort"

	"ragengine/internal/port"
)

var _ port.Reranker = (*SimpleReranker)(nil)

// SimpleReranker orders texts by the share of query terms they contain.
// It needs no model and is always available.
type SimpleReranker struct{}

func NewSimpleReranker() *SimpleReranker {
	return &SimpleReranker{}
}

func (r *SimpleReranker) IsAvailable() bool { return true }

func (r *SimpleReranker) ModelName() string { return "simple-tf" }

// Rerank scores every text. Ties keep their input order; a query without
// usable terms leaves the order unchanged.
func (r *SimpleReranker) Rerank(ctx context.Context, query string, texts []string) ([]port.RerankedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := terms(query)
	results := make([]port.RerankedResult, len(texts))
	for i, text := range texts {
		results[i] = port.RerankedResult{Index: i, Score: overlap(queryTerms, terms(text))}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}
