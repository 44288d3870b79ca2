package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragengine/internal/domain"
	"ragengine/internal/port"
)

func TestMemoryStore_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.CreateCollection(ctx, "docs", 2)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateCollection(ctx, "docs", 2)
	require.NoError(t, err)
	assert.False(t, created, "second create must report existing collection")

	exists, _ := s.CollectionExists(ctx, "docs")
	again, _ := s.CollectionExists(ctx, "docs")
	assert.True(t, exists)
	assert.Equal(t, exists, again)

	names, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, names)

	deleted, err := s.DeleteCollection(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteCollection(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryStore_PointsByDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.CreateCollection(ctx, "docs", 2)
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, "docs", []port.VectorItem{
		{ID: "p1", Vector: []float32{1, 0}, Payload: port.Payload{DocumentID: "d1", Text: "one"}},
		{ID: "p2", Vector: []float32{0, 1}, Payload: port.Payload{DocumentID: "d2", Text: "two"}},
	}))

	exists, err := s.PointExists(ctx, "docs", "d1")
	require.NoError(t, err)
	assert.True(t, exists)

	results, err := s.Search(ctx, "docs", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].Payload.DocumentID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	require.NoError(t, s.DeleteByDocumentID(ctx, "docs", "d1"))
	exists, err = s.PointExists(ctx, "docs", "d1")
	require.NoError(t, err)
	assert.False(t, exists)

	status, err := s.CollectionStatus(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), status.PointsCount)
}

func TestMemoryStore_MissingCollection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.PointExists(ctx, "nope", "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Search(ctx, "nope", []float32{1}, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.CreateCollection(ctx, "docs", 3)
	require.NoError(t, err)

	err = s.Upsert(ctx, "docs", []port.VectorItem{{ID: "p1", Vector: []float32{1}}})
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore()
	fs.Put("f1", "notes.txt", "hello")

	ok, err := fs.Exists(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, ok)

	content, err := fs.GetContent(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	_, err = fs.GetContent(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
