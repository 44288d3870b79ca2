package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"ragengine/internal/adapter/cache"
	"ragengine/internal/domain"
	"ragengine/internal/logging"
	"ragengine/internal/port"
)

// Terminal answers and messages of the query pipeline.
const (
	AnswerContextNotFound = "Context not found"
	MsgEmptyQuery         = "Query text must not be empty"
	MsgNoRelevantInfo     = "No relevant information found for the given query"
	MsgCorruptedContent   = "Stored content is not readable text; relink your files to fix corrupted content"
	msgSearchFailedStart  = "Failed to search collection: "
)

const (
	DefaultQueryLimit         = 5
	DefaultRelevanceThreshold = 0.5
	DefaultMaxChunks          = 3
	DefaultChunkChars         = 150
)

// QueryOptions configures a QueryUseCase.
type QueryOptions struct {
	RelevanceThreshold float64       // Minimum similarity for a hit to count (default 0.5)
	MaxChunks          int           // Chunks passed to answer generation (default 3)
	ChunkChars         int           // Characters kept per chunk (default 150)
	StepTimeout        time.Duration // Bound on every port call (0 = none)
	Cache              *cache.QueryCache
	Logger             *log.Logger
}

// QueryUseCase answers questions against a collection:
// embed, search, filter, rerank, extract, generate.
type QueryUseCase struct {
	vectors   port.VectorStore
	embedder  port.Embedder
	reranker  port.Reranker
	generator port.AnswerGenerator
	cache     *cache.QueryCache
	logger    *log.Logger

	threshold   float64
	maxChunks   int
	chunkChars  int
	stepTimeout time.Duration
}

// NewQueryUseCase creates a new query use case. reranker may be nil.
func NewQueryUseCase(
	vectors port.VectorStore,
	embedder port.Embedder,
	reranker port.Reranker,
	generator port.AnswerGenerator,
	opts QueryOptions,
) *QueryUseCase {
	if opts.RelevanceThreshold <= 0 {
		opts.RelevanceThreshold = DefaultRelevanceThreshold
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = DefaultMaxChunks
	}
	if opts.ChunkChars <= 0 {
		opts.ChunkChars = DefaultChunkChars
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &QueryUseCase{
		vectors:     vectors,
		embedder:    embedder,
		reranker:    reranker,
		generator:   generator,
		cache:       opts.Cache,
		logger:      opts.Logger,
		threshold:   opts.RelevanceThreshold,
		maxChunks:   opts.MaxChunks,
		chunkChars:  opts.ChunkChars,
		stepTimeout: opts.StepTimeout,
	}
}

// notFound builds the terminal low-confidence result.
func notFound(message string) domain.QueryResult {
	return domain.QueryResult{
		Answer:      AnswerContextNotFound,
		Confidence:  0,
		Relevant:    false,
		MissingInfo: message,
		Chunks:      []domain.Chunk{},
	}
}

// Query runs the retrieval pipeline. It never fails: every error is folded
// into a terminal result whose MissingInfo describes what went wrong.
func (u *QueryUseCase) Query(ctx context.Context, collection, text string, limit int) (result domain.QueryResult) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	logger := u.logger

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("collection", collection).Interface("panic", r).Msg("query pipeline panicked")
			result = notFound(msgSearchFailedStart + fmt.Sprintf("panic: %v", r))
		}
	}()

	exists, err := callStep(ctx, u.stepTimeout, func(ctx context.Context) (bool, error) {
		return u.vectors.CollectionExists(ctx, collection)
	})
	if err != nil {
		logger.Warn().Str("collection", collection).Err(err).Msg("collection check failed")
		return notFound(msgSearchFailedStart + err.Error())
	}
	if !exists {
		return notFound(fmt.Sprintf("Collection '%s' does not exist", collection))
	}
	if strings.TrimSpace(text) == "" {
		return notFound(MsgEmptyQuery)
	}

	var gen uint64
	if u.cache != nil {
		if cached, ok := u.cache.Get(collection, text, limit); ok {
			logger.Debug().Str("collection", collection).Msg("query cache hit")
			return cached
		}
		gen = u.cache.Generation(collection)
	}

	result, err = u.run(ctx, collection, text, limit)
	if err != nil {
		logger.Warn().Str("collection", collection).Err(err).Msg("query failed")
		return notFound(msgSearchFailedStart + err.Error())
	}

	if result.Relevant && u.cache != nil {
		u.cache.Put(collection, text, limit, gen, result)
	}
	logger.Info().
		Str("collection", collection).
		Bool("relevant", result.Relevant).
		Float64("confidence", result.Confidence).
		Int("chunks", len(result.Chunks)).
		Msg("query complete")
	return result
}

func (u *QueryUseCase) run(ctx context.Context, collection, text string, limit int) (domain.QueryResult, error) {
	vector, err := embedOne(ctx, u.embedder, u.stepTimeout, text)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := callStep(ctx, u.stepTimeout, func(ctx context.Context) ([]port.VectorResult, error) {
		return u.vectors.Search(ctx, collection, vector, limit)
	})
	if err != nil {
		return domain.QueryResult{}, err
	}

	relevant := filterRelevant(hits, u.threshold)
	if len(relevant) == 0 {
		return notFound(MsgNoRelevantInfo), nil
	}
	confidence := maxScore(relevant)

	ordered := u.rerank(ctx, text, relevant)

	chunks := u.extractChunks(ordered)
	if len(chunks) == 0 {
		return notFound(MsgCorruptedContent), nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	answer, err := callStep(ctx, u.stepTimeout, func(ctx context.Context) (string, error) {
		return u.generator.Generate(ctx, text, texts)
	})
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	return domain.QueryResult{
		Answer:     answer,
		Confidence: confidence,
		Relevant:   true,
		Chunks:     chunks,
	}, nil
}

// filterRelevant keeps hits scoring at or above threshold, in search order.
func filterRelevant(hits []port.VectorResult, threshold float64) []port.VectorResult {
	out := make([]port.VectorResult, 0, len(hits))
	for _, h := range hits {
		if h.Score >= threshold {
			out = append(out, h)
		}
	}
	return out
}

func maxScore(hits []port.VectorResult) float64 {
	best := 0.0
	for _, h := range hits {
		if h.Score > best {
			best = h.Score
		}
	}
	if best > 1 {
		best = 1
	}
	return best
}

// rerank reorders hits with the configured reranker. The returned slice
// always holds exactly the input hits; a failing reranker leaves the search
// order untouched.
func (u *QueryUseCase) rerank(ctx context.Context, query string, hits []port.VectorResult) []port.VectorResult {
	if u.reranker == nil || !u.reranker.IsAvailable() || len(hits) < 2 {
		return hits
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Payload.Text
	}
	ranked, err := callStep(ctx, u.stepTimeout, func(ctx context.Context) ([]port.RerankedResult, error) {
		return u.reranker.Rerank(ctx, query, texts)
	})
	if err != nil {
		u.logger.Warn().Str("reranker", u.reranker.ModelName()).Err(err).Msg("rerank failed, keeping search order")
		return hits
	}
	return applyPermutation(hits, ranked)
}

// applyPermutation orders hits by ranked indices. Out-of-range and repeated
// indices are ignored; hits the ranking omits follow in their original order.
func applyPermutation(hits []port.VectorResult, ranked []port.RerankedResult) []port.VectorResult {
	out := make([]port.VectorResult, 0, len(hits))
	used := make([]bool, len(hits))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(hits) || used[r.Index] {
			continue
		}
		used[r.Index] = true
		out = append(out, hits[r.Index])
	}
	for i, h := range hits {
		if !used[i] {
			out = append(out, h)
		}
	}
	return out
}

// extractChunks turns up to maxChunks valid hit texts into bounded excerpts.
func (u *QueryUseCase) extractChunks(hits []port.VectorResult) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, u.maxChunks)
	for _, h := range hits {
		if len(chunks) == u.maxChunks {
			break
		}
		if !isValidText(h.Payload.Text) {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: h.Payload.DocumentID,
			Text:       Truncate(h.Payload.Text, u.chunkChars),
			Score:      h.Score,
		})
	}
	return chunks
}
