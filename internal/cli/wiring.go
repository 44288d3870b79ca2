package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/phuslu/log"

	"ragengine/config"
	"ragengine/internal/adapter/cache"
	"ragengine/internal/adapter/embedding"
	"ragengine/internal/adapter/filestore"
	"ragengine/internal/adapter/llm"
	"ragengine/internal/adapter/qdrant"
	"ragengine/internal/adapter/reranker"
	"ragengine/internal/adapter/store"
	"ragengine/internal/port"
	"ragengine/internal/usecase"
)

// app holds the adapters and use cases built from the loaded config for a
// single command invocation.
type app struct {
	files       *filestore.DiskStore
	vectors     port.VectorStore
	collections *usecase.CollectionUseCase
	links       *usecase.LinkUseCase
	queries     *usecase.QueryUseCase
	closers     []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// openFiles opens only the file store, for commands that never touch vectors.
func openFiles(cfg *config.Config, dir string) (*filestore.DiskStore, error) {
	if err := config.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	files, err := filestore.NewDiskStore(config.Resolve(dir, cfg.Files.UploadDir), config.Resolve(dir, cfg.Files.IndexPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open file store: %w", err)
	}
	return files, nil
}

func openApp(cfg *config.Config, dir string, logger *log.Logger) (*app, error) {
	a := &app{}

	files, err := openFiles(cfg, dir)
	if err != nil {
		return nil, err
	}
	a.files = files
	a.closers = append(a.closers, files.Close)

	vectors, err := newVectorStore(cfg, dir, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.vectors = vectors
	a.closers = append(a.closers, vectors.Close)

	embedder, err := newEmbedder(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	generator, err := newGenerator(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	rr := newReranker(cfg, logger)

	var queryCache *cache.QueryCache
	if cfg.Retrieve.CacheSize > 0 {
		queryCache = cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL)
	}

	a.collections = usecase.NewCollectionUseCase(vectors, embedder, queryCache, logger)
	a.links = usecase.NewLinkUseCase(vectors, files, embedder, usecase.LinkOptions{
		Concurrency: cfg.Link.Concurrency,
		StepTimeout: cfg.Timeouts.Step,
		Cache:       queryCache,
		Logger:      logger,
	})
	a.queries = usecase.NewQueryUseCase(vectors, embedder, rr, generator, usecase.QueryOptions{
		RelevanceThreshold: cfg.Retrieve.RelevanceThreshold,
		MaxChunks:          cfg.Retrieve.MaxChunks,
		ChunkChars:         cfg.Retrieve.ChunkChars,
		StepTimeout:        cfg.Timeouts.Step,
		Cache:              queryCache,
		Logger:             logger,
	})
	return a, nil
}

func newVectorStore(cfg *config.Config, dir string, logger *log.Logger) (port.VectorStore, error) {
	switch cfg.VectorStore.Provider {
	case "bolt":
		return openBoltVectors(cfg, dir, logger)
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		s, err := qdrant.New(qdrant.Config{
			Host:   q.Host,
			Port:   q.Port,
			APIKey: os.Getenv(q.APIKeyEnv),
			UseTLS: q.UseTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		return s, nil
	case "memory":
		// Each command is its own process, so nothing linked would survive
		// to the next one.
		return nil, fmt.Errorf("vector store provider %q does not persist between commands; use bolt or qdrant", cfg.VectorStore.Provider)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", cfg.VectorStore.Provider)
	}
}

// openBoltVectors opens the local vector database, upgrading its schema and
// warning when its vectors came from a different embedding setup.
func openBoltVectors(cfg *config.Config, dir string, logger *log.Logger) (port.VectorStore, error) {
	if err := config.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := config.Resolve(dir, cfg.VectorStore.BoltPath)
	vs, check, err := store.OpenVectorStore(path, cfg)
	if err != nil {
		return nil, err
	}
	if check.NeedsRelink {
		logger.Warn().Str("path", path).Msg(check.Reason)
	}
	if check.NeedsMigration {
		logger.Debug().Int("from", check.OldVersion).Int("to", check.NewVersion).Msg("migrated vector store schema")
	}
	return vs, nil
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	e := cfg.Embedding

	var embedder port.Embedder
	var err error
	switch e.Provider {
	case "ollama":
		embedder, err = embedding.NewOllamaEmbedder(e.Model, e.BaseURL, e.Dimension)
	case "openai":
		embedder, err = embedding.NewOpenAICompatibleEmbedder(e.APIKeyEnv, e.Model, e.BaseURL, e.Dimension)
	case "mock":
		embedder = embedding.NewMockEmbedder(e.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", e.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedding.NewRateLimited(embedder, e.RequestsPerSecond), nil
}

func newGenerator(cfg *config.Config) (port.AnswerGenerator, error) {
	l := cfg.LLM

	var model port.LLM
	switch l.Provider {
	case "extractive":
		return llm.ExtractiveAnswerer{}, nil
	case "ollama":
		m, err := llm.NewOllamaLLM(l.Model, l.BaseURL, l.Temperature)
		if err != nil {
			return nil, fmt.Errorf("failed to create llm: %w", err)
		}
		model = m
	case "openai":
		model = llm.NewOpenAILLM(l.APIKeyEnv, l.Model, l.BaseURL, l.Temperature)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", l.Provider)
	}
	answerer, err := llm.NewPromptedAnswerer(model)
	if err != nil {
		return nil, fmt.Errorf("failed to load answer prompt: %w", err)
	}
	return answerer, nil
}

// newReranker returns nil when reranking is disabled.
func newReranker(cfg *config.Config, logger *log.Logger) port.Reranker {
	r := cfg.Rerank
	switch r.Provider {
	case "cohere":
		c := reranker.NewCohereReranker(r.APIKeyEnv, r.Model, "")
		if !c.IsAvailable() {
			logger.Warn().Str("env", r.APIKeyEnv).Msg("cohere api key not set; results keep search order")
		}
		return c
	case "simple":
		return reranker.NewSimpleReranker()
	case "mmr":
		return reranker.NewMMRReranker(r.MMRLambda)
	default:
		return nil
	}
}

// withApp opens the app for the current config, runs fn and closes it.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(GetConfig(), GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
