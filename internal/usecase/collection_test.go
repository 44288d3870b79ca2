package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragengine/internal/adapter/cache"
	"ragengine/internal/adapter/memstore"
	"ragengine/internal/domain"
	"ragengine/internal/port"
)

func TestCollectionUseCase_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()
	uc := NewCollectionUseCase(store, newFakeEmbedder(), nil, nil)

	created, err := uc.Create(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = uc.Create(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, created)

	list, err := uc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Collection{{Name: "docs"}}, list)

	status, err := uc.Status(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", status.Name)
	assert.Equal(t, uint64(0), status.PointsCount)

	deleted, err := uc.Delete(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = uc.Status(ctx, "docs")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCollectionUseCase_CreateRejectsEmptyName(t *testing.T) {
	uc := NewCollectionUseCase(memstore.NewMemoryStore(), newFakeEmbedder(), nil, nil)
	_, err := uc.Create(context.Background(), "  ")
	assert.Error(t, err)
}

type dimensionlessEmbedder struct{ *fakeEmbedder }

func (dimensionlessEmbedder) Dimension() int { return 0 }

func TestCollectionUseCase_ProbesDimension(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()
	embedder := dimensionlessEmbedder{newFakeEmbedder()}
	uc := NewCollectionUseCase(store, embedder, nil, nil)

	_, err := uc.Create(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.Calls())

	err = store.Upsert(ctx, "docs", []port.VectorItem{{ID: "p", Vector: []float32{1, 2, 3}}})
	assert.NoError(t, err)
	err = store.Upsert(ctx, "docs", []port.VectorItem{{ID: "q", Vector: []float32{1}}})
	assert.Error(t, err)
}

func TestCollectionUseCase_DeleteInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	qc := cache.NewQueryCache(10, time.Minute)
	uc := NewCollectionUseCase(memstore.NewMemoryStore(), newFakeEmbedder(), qc, nil)
	_, err := uc.Create(ctx, "docs")
	require.NoError(t, err)

	qc.Put("docs", "q", 5, qc.Generation("docs"), domain.QueryResult{Answer: "a", Relevant: true})
	_, err = uc.Delete(ctx, "docs")
	require.NoError(t, err)

	_, hit := qc.Get("docs", "q", 5)
	assert.False(t, hit)
}

func TestCollectionUseCase_BatchStatus(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()
	files := memstore.NewFileStore()
	files.Put("f1", "a.txt", "alpha")
	embedder := newFakeEmbedder()

	uc := NewCollectionUseCase(store, embedder, nil, nil)
	_, err := uc.Create(ctx, "docs")
	require.NoError(t, err)
	NewLinkUseCase(store, files, embedder, LinkOptions{}).
		Link(ctx, "docs", []domain.LinkItem{{Name: "a.txt", DocumentID: "f1", Field: "text"}})

	states, err := uc.BatchStatus(ctx, "docs", []string{"f1", "f2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"f1": domain.LinkStateIndexed,
		"f2": domain.LinkStateNotFound,
	}, states)

	_, err = uc.BatchStatus(ctx, "nope", []string{"f1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCollectionUseCase_StoreErrors(t *testing.T) {
	store := &failingStore{MemoryStore: memstore.NewMemoryStore(), existsErr: errors.New("unreachable")}
	uc := NewCollectionUseCase(store, newFakeEmbedder(), nil, nil)

	_, err := uc.Status(context.Background(), "docs")
	assert.ErrorContains(t, err, "unreachable")
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
