package qdrant

import (
	"context"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ragengine/internal/domain"
	"ragengine/internal/port"
)

type fakeCollections struct {
	exists  map[string]bool
	created *qdrant.CreateCollection
	info    *qdrant.CollectionInfo
}

func (f *fakeCollections) CollectionExists(ctx context.Context, in *qdrant.CollectionExistsRequest, opts ...grpc.CallOption) (*qdrant.CollectionExistsResponse, error) {
	return &qdrant.CollectionExistsResponse{Result: &qdrant.CollectionExists{Exists: f.exists[in.GetCollectionName()]}}, nil
}

func (f *fakeCollections) Create(ctx context.Context, in *qdrant.CreateCollection, opts ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error) {
	f.created = in
	f.exists[in.GetCollectionName()] = true
	return &qdrant.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeCollections) Delete(ctx context.Context, in *qdrant.DeleteCollection, opts ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error) {
	delete(f.exists, in.GetCollectionName())
	return &qdrant.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeCollections) List(ctx context.Context, in *qdrant.ListCollectionsRequest, opts ...grpc.CallOption) (*qdrant.ListCollectionsResponse, error) {
	resp := &qdrant.ListCollectionsResponse{}
	for name := range f.exists {
		resp.Collections = append(resp.Collections, &qdrant.CollectionDescription{Name: name})
	}
	return resp, nil
}

func (f *fakeCollections) Get(ctx context.Context, in *qdrant.GetCollectionInfoRequest, opts ...grpc.CallOption) (*qdrant.GetCollectionInfoResponse, error) {
	if !f.exists[in.GetCollectionName()] {
		return nil, status.Error(codes.NotFound, "collection not found")
	}
	return &qdrant.GetCollectionInfoResponse{Result: f.info}, nil
}

type fakePoints struct {
	upserted *qdrant.UpsertPoints
	deleted  *qdrant.DeletePoints
	counted  *qdrant.CountPoints
	count    uint64
	hits     []*qdrant.ScoredPoint
}

func (f *fakePoints) Upsert(ctx context.Context, in *qdrant.UpsertPoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	f.upserted = in
	return &qdrant.PointsOperationResponse{}, nil
}

func (f *fakePoints) Delete(ctx context.Context, in *qdrant.DeletePoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	f.deleted = in
	return &qdrant.PointsOperationResponse{}, nil
}

func (f *fakePoints) Count(ctx context.Context, in *qdrant.CountPoints, opts ...grpc.CallOption) (*qdrant.CountResponse, error) {
	f.counted = in
	return &qdrant.CountResponse{Result: &qdrant.CountResult{Count: f.count}}, nil
}

func (f *fakePoints) Search(ctx context.Context, in *qdrant.SearchPoints, opts ...grpc.CallOption) (*qdrant.SearchResponse, error) {
	return &qdrant.SearchResponse{Result: f.hits}, nil
}

func TestStore_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	cols := &fakeCollections{exists: map[string]bool{}}
	s := newWithClients(cols, &fakePoints{})

	created, err := s.CreateCollection(ctx, "docs", 768)
	require.NoError(t, err)
	assert.True(t, created)
	params := cols.created.GetVectorsConfig().GetParams()
	assert.Equal(t, uint64(768), params.GetSize())
	assert.Equal(t, qdrant.Distance_Cosine, params.GetDistance())

	created, err = s.CreateCollection(ctx, "docs", 768)
	require.NoError(t, err)
	assert.False(t, created)

	names, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, names)

	deleted, err := s.DeleteCollection(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteCollection(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.CollectionStatus(ctx, "docs")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_CollectionStatus(t *testing.T) {
	points := uint64(12)
	cols := &fakeCollections{
		exists: map[string]bool{"docs": true},
		info:   &qdrant.CollectionInfo{Status: qdrant.CollectionStatus_Green, PointsCount: &points},
	}
	s := newWithClients(cols, &fakePoints{})

	st, err := s.CollectionStatus(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionStatus{Name: "docs", Status: "green", PointsCount: 12}, st)
}

func TestStore_PointExistsFiltersByDocument(t *testing.T) {
	pts := &fakePoints{count: 1}
	s := newWithClients(&fakeCollections{exists: map[string]bool{}}, pts)

	ok, err := s.PointExists(context.Background(), "docs", "file-1")
	require.NoError(t, err)
	assert.True(t, ok)

	field := pts.counted.GetFilter().GetMust()[0].GetField()
	assert.Equal(t, "document_id", field.GetKey())
	assert.Equal(t, "file-1", field.GetMatch().GetKeyword())
	assert.True(t, pts.counted.GetExact())

	pts.count = 0
	ok, err = s.PointExists(context.Background(), "docs", "file-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_UpsertAndSearchRoundTripPayload(t *testing.T) {
	ctx := context.Background()
	pts := &fakePoints{}
	s := newWithClients(&fakeCollections{exists: map[string]bool{}}, pts)

	item := port.VectorItem{
		ID:     "3f1c7a52-8a4e-4c47-9b1e-2a4f0e0d9c11",
		Vector: []float32{0.1, 0.2},
		Payload: port.Payload{
			DocumentID: "file-1",
			Text:       "hello",
			Source:     "text",
			Metadata:   map[string]string{"file_type": "text", "name": "a.txt"},
		},
	}
	require.NoError(t, s.Upsert(ctx, "docs", []port.VectorItem{item}))

	require.Len(t, pts.upserted.GetPoints(), 1)
	stored := pts.upserted.GetPoints()[0]
	assert.True(t, pts.upserted.GetWait())
	assert.Equal(t, item.ID, stored.GetId().GetUuid())
	assert.Equal(t, item.Vector, stored.GetVectors().GetVector().GetData())

	pts.hits = []*qdrant.ScoredPoint{{Id: stored.GetId(), Score: 0.75, Payload: stored.GetPayload()}}
	results, err := s.Search(ctx, "docs", item.Vector, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, item.ID, results[0].ID)
	assert.InDelta(t, 0.75, results[0].Score, 1e-6)
	assert.Equal(t, item.Payload, results[0].Payload)
}

func TestStore_DeleteByDocumentID(t *testing.T) {
	pts := &fakePoints{}
	s := newWithClients(&fakeCollections{exists: map[string]bool{}}, pts)

	require.NoError(t, s.DeleteByDocumentID(context.Background(), "docs", "file-1"))
	field := pts.deleted.GetPoints().GetFilter().GetMust()[0].GetField()
	assert.Equal(t, "file-1", field.GetMatch().GetKeyword())
	assert.Equal(t, "docs", pts.deleted.GetCollectionName())
}
