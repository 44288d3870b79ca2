package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"ragengine/config"
	"ragengine/internal/domain"
	"ragengine/internal/port"
)

func openTestStore(t *testing.T, path string) *BoltVectorStore {
	t.Helper()
	bs, err := NewBoltStore(path)
	require.NoError(t, err)
	vs, err := NewBoltVectorStore(bs)
	require.NoError(t, err)
	return vs
}

func point(id, docID string, v ...float32) port.VectorItem {
	return port.VectorItem{
		ID:      id,
		Vector:  v,
		Payload: port.Payload{DocumentID: docID, Text: "text of " + docID, Source: "text"},
	}
}

func TestBoltVectorStore_Collections(t *testing.T) {
	ctx := context.Background()
	vs := openTestStore(t, filepath.Join(t.TempDir(), "vectors.db"))
	defer vs.Close()

	created, err := vs.CreateCollection(ctx, "docs", 2)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = vs.CreateCollection(ctx, "docs", 2)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = vs.CreateCollection(ctx, "notes", 2)
	require.NoError(t, err)

	names, err := vs.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "notes"}, names)

	deleted, err := vs.DeleteCollection(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, deleted)

	exists, err := vs.CollectionExists(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = vs.CollectionStatus(ctx, "docs")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBoltVectorStore_PointsPersist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	vs := openTestStore(t, path)
	_, err := vs.CreateCollection(ctx, "docs", 2)
	require.NoError(t, err)
	require.NoError(t, vs.Upsert(ctx, "docs", []port.VectorItem{
		point("p1", "d1", 1, 0),
		point("p2", "d2", 0, 1),
	}))
	require.NoError(t, vs.Close())

	vs = openTestStore(t, path)
	defer vs.Close()

	exists, err := vs.PointExists(ctx, "docs", "d1")
	require.NoError(t, err)
	assert.True(t, exists)

	results, err := vs.Search(ctx, "docs", []float32{1, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].Payload.DocumentID)
	assert.Equal(t, "text of d1", results[0].Payload.Text)

	require.NoError(t, vs.DeleteByDocumentID(ctx, "docs", "d1"))
	exists, err = vs.PointExists(ctx, "docs", "d1")
	require.NoError(t, err)
	assert.False(t, exists)

	status, err := vs.CollectionStatus(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), status.PointsCount)
}

func TestBoltVectorStore_Errors(t *testing.T) {
	ctx := context.Background()
	vs := openTestStore(t, filepath.Join(t.TempDir(), "vectors.db"))
	defer vs.Close()

	err := vs.Upsert(ctx, "missing", []port.VectorItem{point("p1", "d1", 1, 0)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = vs.CreateCollection(ctx, "docs", 3)
	require.NoError(t, err)
	err = vs.Upsert(ctx, "docs", []port.VectorItem{point("p1", "d1", 1, 0)})
	assert.ErrorContains(t, err, "dimension mismatch")

	_, err = vs.Search(ctx, "docs", []float32{1}, 5)
	assert.Error(t, err)
}

func TestBoltStore_Migration(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")
	cfg := config.DefaultConfig()

	bs, err := NewBoltStore(path)
	require.NoError(t, err)

	result, err := bs.CheckMigration(cfg)
	require.NoError(t, err)
	assert.True(t, result.NeedsMigration)
	assert.False(t, result.NeedsRelink)

	require.NoError(t, bs.Migrate(cfg))
	result, err = bs.CheckMigration(cfg)
	require.NoError(t, err)
	assert.False(t, result.NeedsMigration)

	changed := config.DefaultConfig()
	changed.Embedding.Model = "nomic-embed-text"
	result, err = bs.CheckMigration(changed)
	require.NoError(t, err)
	assert.True(t, result.NeedsRelink)

	// A v1 database has points but no document index.
	vs, err := NewBoltVectorStore(bs)
	require.NoError(t, err)
	_, err = vs.CreateCollection(ctx, "docs", 2)
	require.NoError(t, err)
	require.NoError(t, vs.Upsert(ctx, "docs", []port.VectorItem{point("p1", "d1", 1, 0)}))
	require.NoError(t, bs.DB().Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCollections).Bucket([]byte("docs")).DeleteBucket(bucketDocPoints)
	}))
	require.NoError(t, bs.SetSchemaInfo(&SchemaInfo{Version: 1}))

	require.NoError(t, bs.Migrate(cfg))
	require.NoError(t, bs.DB().View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCollections).Bucket([]byte("docs")).Bucket(bucketDocPoints).Get([]byte("d1"))
		var ids []string
		require.NoError(t, json.Unmarshal(data, &ids))
		assert.Equal(t, []string{"p1"}, ids)
		return nil
	}))
	require.NoError(t, vs.Close())
}

func TestOpenVectorStore_MigratesOnOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")
	cfg := config.DefaultConfig()

	vs, check, err := OpenVectorStore(path, cfg)
	require.NoError(t, err)
	assert.True(t, check.NeedsMigration)
	_, err = vs.CreateCollection(ctx, "docs", 2)
	require.NoError(t, err)
	require.NoError(t, vs.Upsert(ctx, "docs", []port.VectorItem{point("p1", "d1", 1, 0)}))
	require.NoError(t, vs.Close())

	vs, check, err = OpenVectorStore(path, cfg)
	require.NoError(t, err)
	assert.False(t, check.NeedsMigration)
	assert.False(t, check.NeedsRelink)
	linked, err := vs.PointExists(ctx, "docs", "d1")
	require.NoError(t, err)
	assert.True(t, linked)
	require.NoError(t, vs.Close())

	changed := config.DefaultConfig()
	changed.Embedding.Model = "nomic-embed-text"
	vs, check, err = OpenVectorStore(path, changed)
	require.NoError(t, err)
	assert.True(t, check.NeedsRelink)
	require.NoError(t, vs.Close())

	// The new embedding setup is recorded, so the warning is reported once.
	vs, check, err = OpenVectorStore(path, changed)
	require.NoError(t, err)
	assert.False(t, check.NeedsRelink)
	require.NoError(t, vs.Close())
}
