package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"ragengine/config"
	"ragengine/internal/adapter/embedding"
	"ragengine/internal/adapter/llm"
	"ragengine/internal/adapter/store"
	"ragengine/internal/port"
	"ragengine/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding the .rag data dir")
	collection := flag.String("collection", "", "Collection to query")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of search hits")
	runs := flag.Int("n", 20, "Query pipeline runs for latency")
	flag.Parse()

	if *query == "" || *collection == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -collection docs -q \"query\"")
		fmt.Println("\nTests:")
		fmt.Println("  1. Embedding infrastructure (model connection, vector store)")
		fmt.Println("  2. Semantic similarity (query vs stored documents)")
		fmt.Println("  3. Query pipeline latency and confidence")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	vectors, check, err := store.OpenVectorStore(config.Resolve(*dir, cfg.VectorStore.BoltPath), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening vector store: %v\n", err)
		os.Exit(1)
	}
	if check.NeedsRelink {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", check.Reason)
	}
	defer vectors.Close()

	embedder, err := setupEmbedding(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Semantic search not available: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	status, err := vectors.CollectionStatus(ctx, *collection)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Collection not available: %v\n", err)
		os.Exit(1)
	}
	if status.PointsCount == 0 {
		fmt.Fprintf(os.Stderr, "Collection %s is empty - link documents first\n", *collection)
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Points linked: %d\n", status.PointsCount)
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", embedder.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	queryVec, err := embedder.Embed(ctx, []string{*query})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}

	results, err := vectors.Search(ctx, *collection, queryVec[0], *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(results))
	totalScore := 0.0
	for i, r := range results {
		preview := usecase.Truncate(strings.ReplaceAll(r.Payload.Text, "\n", " "), cfg.Retrieve.ChunkChars)
		totalScore += r.Score
		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating(r.Score), r.Score, r.Payload.DocumentID)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)
	fmt.Printf("  Above threshold:    %d (>= %.2f)\n", aboveThreshold(results, cfg.Retrieve.RelevanceThreshold), cfg.Retrieve.RelevanceThreshold)

	// The cache is left out so every run walks the whole pipeline.
	queries := usecase.NewQueryUseCase(vectors, embedder, nil, llm.ExtractiveAnswerer{}, usecase.QueryOptions{
		RelevanceThreshold: cfg.Retrieve.RelevanceThreshold,
		MaxChunks:          cfg.Retrieve.MaxChunks,
		ChunkChars:         cfg.Retrieve.ChunkChars,
		StepTimeout:        cfg.Timeouts.Step,
	})

	latencies := make([]time.Duration, 0, *runs)
	var last float64
	for i := 0; i < *runs; i++ {
		start := time.Now()
		result := queries.Query(ctx, *collection, *query, *topK)
		latencies = append(latencies, time.Since(start))
		last = result.Confidence
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Printf("\nPIPELINE (%d runs):\n", len(latencies))
	fmt.Printf("  Confidence: %.3f\n", last)
	if len(latencies) > 0 {
		fmt.Printf("  p50: %s  p95: %s  max: %s\n",
			latencies[len(latencies)/2], latencies[len(latencies)*95/100], latencies[len(latencies)-1])
	}
}

func rating(similarity float64) string {
	switch {
	case similarity > 0.7:
		return "HIGH"
	case similarity > 0.5:
		return "GOOD"
	case similarity > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}

func aboveThreshold(results []port.VectorResult, threshold float64) int {
	n := 0
	for _, r := range results {
		if r.Score >= threshold {
			n++
		}
	}
	return n
}

func setupEmbedding(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimension)
	case "openai":
		return embedding.NewOpenAICompatibleEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimension)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Provider)
	}
}
