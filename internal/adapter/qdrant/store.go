package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"ragengine/internal/domain"
	"ragengine/internal/port"
)

var _ port.VectorStore = (*Store)(nil)

const (
	fieldDocumentID = "document_id"
	fieldText       = "text"
	fieldSource     = "source"
	fieldMetadata   = "metadata"
)

// collectionsAPI is the subset of qdrant.CollectionsClient used by Store.
type collectionsAPI interface {
	CollectionExists(ctx context.Context, in *qdrant.CollectionExistsRequest, opts ...grpc.CallOption) (*qdrant.CollectionExistsResponse, error)
	Create(ctx context.Context, in *qdrant.CreateCollection, opts ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *qdrant.DeleteCollection, opts ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error)
	List(ctx context.Context, in *qdrant.ListCollectionsRequest, opts ...grpc.CallOption) (*qdrant.ListCollectionsResponse, error)
	Get(ctx context.Context, in *qdrant.GetCollectionInfoRequest, opts ...grpc.CallOption) (*qdrant.GetCollectionInfoResponse, error)
}

// pointsAPI is the subset of qdrant.PointsClient used by Store.
type pointsAPI interface {
	Upsert(ctx context.Context, in *qdrant.UpsertPoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error)
	Delete(ctx context.Context, in *qdrant.DeletePoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error)
	Count(ctx context.Context, in *qdrant.CountPoints, opts ...grpc.CallOption) (*qdrant.CountResponse, error)
	Search(ctx context.Context, in *qdrant.SearchPoints, opts ...grpc.CallOption) (*qdrant.SearchResponse, error)
}

// Config holds connection details for the Qdrant gRPC endpoint.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Store is a VectorStore backed by a Qdrant server. Collections use cosine
// distance; each point carries its document id in the payload.
type Store struct {
	conn        *grpc.ClientConn
	collections collectionsAPI
	points      pointsAPI
}

// New connects to Qdrant. The connection is established lazily on first use.
func New(cfg Config) (*Store, error) {
	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant at %s: %w", addr, err)
	}

	return &Store{
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
	}, nil
}

func newWithClients(collections collectionsAPI, points pointsAPI) *Store {
	return &Store{collections: collections, points: points}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	resp, err := s.collections.CollectionExists(ctx, &qdrant.CollectionExistsRequest{CollectionName: name})
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	return resp.GetResult().GetExists(), nil
}

func (s *Store) CreateCollection(ctx context.Context, name string, dimension int) (bool, error) {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if status.Code(err) == codes.AlreadyExists {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) (bool, error) {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	resp, err := s.collections.Delete(ctx, &qdrant.DeleteCollection{CollectionName: name})
	if err != nil {
		return false, fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	return resp.GetResult(), nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	resp, err := s.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	names := make([]string, 0, len(resp.GetCollections()))
	for _, c := range resp.GetCollections() {
		names = append(names, c.GetName())
	}
	return names, nil
}

func (s *Store) CollectionStatus(ctx context.Context, name string) (domain.CollectionStatus, error) {
	resp, err := s.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: name})
	if status.Code(err) == codes.NotFound {
		return domain.CollectionStatus{}, fmt.Errorf("%w: collection %s", domain.ErrNotFound, name)
	}
	if err != nil {
		return domain.CollectionStatus{}, fmt.Errorf("failed to get collection %s: %w", name, err)
	}
	info := resp.GetResult()
	return domain.CollectionStatus{
		Name:        name,
		Status:      strings.ToLower(info.GetStatus().String()),
		PointsCount: info.GetPointsCount(),
	}, nil
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: fieldDocumentID,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: documentID},
					},
				},
			},
		}},
	}
}

// PointExists counts points whose payload carries the document id.
func (s *Store) PointExists(ctx context.Context, collection, documentID string) (bool, error) {
	exact := true
	resp, err := s.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         documentFilter(documentID),
		Exact:          &exact,
	})
	if err != nil {
		return false, fmt.Errorf("failed to count points: %w", err)
	}
	return resp.GetResult().GetCount() > 0, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, items []port.VectorItem) error {
	points := make([]*qdrant.PointStruct, len(items))
	for i, item := range items {
		points[i] = &qdrant.PointStruct{
			Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: item.ID}},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: item.Vector}},
			},
			Payload: encodePayload(item.Payload),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (s *Store) DeleteByDocumentID(ctx context.Context, collection, documentID string) error {
	wait := true
	_, err := s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: documentFilter(documentID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int) ([]port.VectorResult, error) {
	resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", collection, err)
	}

	results := make([]port.VectorResult, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		results = append(results, port.VectorResult{
			ID:      pointID(p.GetId()),
			Score:   float64(p.GetScore()),
			Payload: decodePayload(p.GetPayload()),
		})
	}
	return results, nil
}

func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func pointID(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func encodePayload(p port.Payload) map[string]*qdrant.Value {
	fields := make(map[string]*qdrant.Value, len(p.Metadata))
	for k, v := range p.Metadata {
		fields[k] = stringValue(v)
	}
	return map[string]*qdrant.Value{
		fieldDocumentID: stringValue(p.DocumentID),
		fieldText:       stringValue(p.Text),
		fieldSource:     stringValue(p.Source),
		fieldMetadata: {
			Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}},
		},
	}
}

func decodePayload(m map[string]*qdrant.Value) port.Payload {
	p := port.Payload{
		DocumentID: m[fieldDocumentID].GetStringValue(),
		Text:       m[fieldText].GetStringValue(),
		Source:     m[fieldSource].GetStringValue(),
	}
	if fields := m[fieldMetadata].GetStructValue().GetFields(); len(fields) > 0 {
		p.Metadata = make(map[string]string, len(fields))
		for k, v := range fields {
			p.Metadata[k] = v.GetStringValue()
		}
	}
	return p
}
