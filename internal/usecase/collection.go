package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"ragengine/internal/adapter/cache"
	"ragengine/internal/domain"
	"ragengine/internal/logging"
	"ragengine/internal/port"
)

// CollectionUseCase manages the lifecycle of collections.
type CollectionUseCase struct {
	vectors  port.VectorStore
	embedder port.Embedder
	cache    *cache.QueryCache
	logger   *log.Logger
}

// NewCollectionUseCase creates a new collection use case. queryCache and
// logger may be nil.
func NewCollectionUseCase(
	vectors port.VectorStore,
	embedder port.Embedder,
	queryCache *cache.QueryCache,
	logger *log.Logger,
) *CollectionUseCase {
	if logger == nil {
		logger = logging.Nop()
	}
	return &CollectionUseCase{
		vectors:  vectors,
		embedder: embedder,
		cache:    queryCache,
		logger:   logger,
	}
}

// Create creates a collection sized for the embedder's vectors. It reports
// false when the collection already exists.
func (u *CollectionUseCase) Create(ctx context.Context, name string) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, errors.New("collection name must not be empty")
	}

	dimension, err := u.dimension(ctx)
	if err != nil {
		return false, err
	}

	created, err := u.vectors.CreateCollection(ctx, name, dimension)
	if err != nil {
		return false, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	u.logger.Info().Str("collection", name).Int("dimension", dimension).Bool("created", created).Msg("create collection")
	return created, nil
}

// dimension returns the embedder's vector size, probing the model when it
// does not advertise one.
func (u *CollectionUseCase) dimension(ctx context.Context) (int, error) {
	if d := u.embedder.Dimension(); d > 0 {
		return d, nil
	}
	vector, err := embedOne(ctx, u.embedder, 0, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("failed to determine embedding dimension: %w", err)
	}
	return len(vector), nil
}

// Delete removes a collection and all of its points. It reports false when
// there was nothing to delete.
func (u *CollectionUseCase) Delete(ctx context.Context, name string) (bool, error) {
	deleted, err := u.vectors.DeleteCollection(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete collection %q: %w", name, err)
	}
	if u.cache != nil {
		u.cache.Invalidate(name)
	}
	u.logger.Info().Str("collection", name).Bool("deleted", deleted).Msg("delete collection")
	return deleted, nil
}

func (u *CollectionUseCase) List(ctx context.Context) ([]domain.Collection, error) {
	names, err := u.vectors.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	collections := make([]domain.Collection, len(names))
	for i, n := range names {
		collections[i] = domain.Collection{Name: n}
	}
	return collections, nil
}

// Status reports the state of a collection. A missing collection yields an
// error wrapping domain.ErrNotFound.
func (u *CollectionUseCase) Status(ctx context.Context, name string) (domain.CollectionStatus, error) {
	exists, err := u.vectors.CollectionExists(ctx, name)
	if err != nil {
		return domain.CollectionStatus{}, fmt.Errorf("failed to get collection status: %w", err)
	}
	if !exists {
		return domain.CollectionStatus{}, fmt.Errorf("%w: collection '%s'", domain.ErrNotFound, name)
	}
	status, err := u.vectors.CollectionStatus(ctx, name)
	if err != nil {
		return domain.CollectionStatus{}, fmt.Errorf("failed to get collection status: %w", err)
	}
	return status, nil
}

// BatchStatus reports, for each document id, whether it is linked into the
// collection: "indexed", "not_found", or "error" when the lookup failed.
func (u *CollectionUseCase) BatchStatus(ctx context.Context, name string, documentIDs []string) (map[string]string, error) {
	exists, err := u.vectors.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: collection '%s'", domain.ErrNotFound, name)
	}

	states := make(map[string]string, len(documentIDs))
	for _, id := range documentIDs {
		linked, err := u.vectors.PointExists(ctx, name, id)
		switch {
		case err != nil:
			u.logger.Warn().Str("collection", name).Str("document_id", id).Err(err).Msg("status lookup failed")
			states[id] = domain.LinkStateError
		case linked:
			states[id] = domain.LinkStateIndexed
		default:
			states[id] = domain.LinkStateNotFound
		}
	}
	return states, nil
}
