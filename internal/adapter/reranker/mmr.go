package reranker

import (
	"context"

	"ragengine/internal/port"
)

var _ port.Reranker = (*MMRReranker)(nil)

// MMRReranker diversifies results with Maximal Marginal Relevance:
//
//	MMR(c) = λ * relevance(c) - (1-λ) * max_similarity(c, selected)
//
// Relevance is query term overlap, similarity is Jaccard over terms. Every
// input index is returned, so near-duplicates move down instead of out.
type MMRReranker struct {
	lambda float64
}

// NewMMRReranker creates an MMR reranker. lambda outside [0,1] is clamped.
func NewMMRReranker(lambda float64) *MMRReranker {
	return &MMRReranker{lambda: min(max(lambda, 0), 1)}
}

func (r *MMRReranker) IsAvailable() bool { return true }

func (r *MMRReranker) ModelName() string { return "mmr" }

func (r *MMRReranker) Rerank(ctx context.Context, query string, texts []string) ([]port.RerankedResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	queryTerms := terms(query)
	docTerms := make([]map[string]struct{}, len(texts))
	relevance := make([]float64, len(texts))
	for i, text := range texts {
		docTerms[i] = terms(text)
		relevance[i] = overlap(queryTerms, docTerms[i])
	}

	selected := make([]port.RerankedResult, 0, len(texts))
	remaining := make([]int, len(texts))
	for i := range remaining {
		remaining[i] = i
	}

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bestPos, bestScore := 0, -1e9
		for pos, idx := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				if sim := jaccard(docTerms[idx], docTerms[sel.Index]); sim > maxSim {
					maxSim = sim
				}
			}
			score := r.lambda*relevance[idx] - (1-r.lambda)*maxSim
			// Strictly greater keeps the earlier (higher ranked) text on ties.
			if score > bestScore {
				bestPos, bestScore = pos, score
			}
		}

		selected = append(selected, port.RerankedResult{Index: remaining[bestPos], Score: bestScore})
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected, nil
}
