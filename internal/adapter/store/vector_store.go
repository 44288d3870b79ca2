package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"ragengine/internal/domain"
	"ragengine/internal/port"
)

var _ port.VectorStore = (*BoltVectorStore)(nil)

// BoltVectorStore implements VectorStore using BoltDB for persistence.
// Every collection is a nested bucket holding its points and a document
// index. Search is brute force over an in-memory copy of the vectors.
type BoltVectorStore struct {
	store *BoltStore
	mu    sync.RWMutex
	// In-memory cache for fast search
	collections map[string]*collectionCache
}

type collectionCache struct {
	dimension int
	points    map[string]storedPoint
	docPoints map[string][]string
}

type collectionMeta struct {
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

type storedPoint struct {
	Vector  []float32    `json:"v"`
	Payload port.Payload `json:"p"`
}

// NewBoltVectorStore creates a vector store on top of an open BoltStore and
// loads all existing vectors into memory.
func NewBoltVectorStore(bs *BoltStore) (*BoltVectorStore, error) {
	s := &BoltVectorStore{
		store:       bs,
		collections: make(map[string]*collectionCache),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return s, nil
}

func (s *BoltVectorStore) load() error {
	return s.store.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections)
		return root.ForEach(func(name, v []byte) error {
			if v != nil {
				return nil
			}
			cb := root.Bucket(name)

			var meta collectionMeta
			if data := cb.Get(keyCollection); data != nil {
				if err := json.Unmarshal(data, &meta); err != nil {
					return fmt.Errorf("collection %s: %w", name, err)
				}
			}

			cache := &collectionCache{
				dimension: meta.Dimension,
				points:    make(map[string]storedPoint),
				docPoints: make(map[string][]string),
			}
			if pb := cb.Bucket(bucketPoints); pb != nil {
				err := pb.ForEach(func(k, v []byte) error {
					var p storedPoint
					if err := json.Unmarshal(v, &p); err != nil {
						return nil // Skip corrupted entries
					}
					id := string(k)
					cache.points[id] = p
					cache.docPoints[p.Payload.DocumentID] = append(cache.docPoints[p.Payload.DocumentID], id)
					return nil
				})
				if err != nil {
					return err
				}
			}
			s.collections[string(name)] = cache
			return nil
		})
	})
}

func notFound(name string) error {
	return fmt.Errorf("%w: collection %s", domain.ErrNotFound, name)
}

func (s *BoltVectorStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *BoltVectorStore) CreateCollection(ctx context.Context, name string, dimension int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; ok {
		return false, nil
	}

	err := s.store.db.Update(func(tx *bbolt.Tx) error {
		cb, err := tx.Bucket(bucketCollections).CreateBucket([]byte(name))
		if err != nil {
			return err
		}
		for _, b := range [][]byte{bucketPoints, bucketDocPoints} {
			if _, err := cb.CreateBucket(b); err != nil {
				return err
			}
		}
		data, err := json.Marshal(collectionMeta{Dimension: dimension, CreatedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		return cb.Put(keyCollection, data)
	})
	if err != nil {
		return false, fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	s.collections[name] = &collectionCache{
		dimension: dimension,
		points:    make(map[string]storedPoint),
		docPoints: make(map[string][]string),
	}
	return true, nil
}

func (s *BoltVectorStore) DeleteCollection(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		return false, nil
	}

	err := s.store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCollections).DeleteBucket([]byte(name))
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	delete(s.collections, name)
	return true, nil
}

func (s *BoltVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *BoltVectorStore) CollectionStatus(ctx context.Context, name string) (domain.CollectionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return domain.CollectionStatus{}, notFound(name)
	}
	return domain.CollectionStatus{
		Name:        name,
		Status:      "green",
		PointsCount: uint64(len(c.points)),
	}, nil
}

func (s *BoltVectorStore) PointExists(ctx context.Context, collection, documentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return false, notFound(collection)
	}
	return len(c.docPoints[documentID]) > 0, nil
}

// Upsert adds or updates points in a collection.
func (s *BoltVectorStore) Upsert(ctx context.Context, collection string, items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return notFound(collection)
	}
	for _, item := range items {
		if c.dimension > 0 && len(item.Vector) != c.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", c.dimension, len(item.Vector))
		}
	}

	err := s.store.db.Update(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketCollections).Bucket([]byte(collection))
		if cb == nil {
			return notFound(collection)
		}
		pb, db := cb.Bucket(bucketPoints), cb.Bucket(bucketDocPoints)

		for _, item := range items {
			data, err := json.Marshal(storedPoint{Vector: item.Vector, Payload: item.Payload})
			if err != nil {
				return err
			}
			if err := pb.Put([]byte(item.ID), data); err != nil {
				return err
			}
			if err := addToIndex(db, item.Payload.DocumentID, item.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	for _, item := range items {
		if old, exists := c.points[item.ID]; exists {
			c.docPoints[old.Payload.DocumentID] = removeID(c.docPoints[old.Payload.DocumentID], item.ID)
		}
		c.points[item.ID] = storedPoint{Vector: item.Vector, Payload: item.Payload}
		c.docPoints[item.Payload.DocumentID] = append(c.docPoints[item.Payload.DocumentID], item.ID)
	}
	return nil
}

// DeleteByDocumentID removes every point carrying the document id.
func (s *BoltVectorStore) DeleteByDocumentID(ctx context.Context, collection, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return notFound(collection)
	}

	err := s.store.db.Update(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketCollections).Bucket([]byte(collection))
		if cb == nil {
			return notFound(collection)
		}
		pb := cb.Bucket(bucketPoints)
		for _, id := range c.docPoints[documentID] {
			if err := pb.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return cb.Bucket(bucketDocPoints).Delete([]byte(documentID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}

	for _, id := range c.docPoints[documentID] {
		delete(c.points, id)
	}
	delete(c.docPoints, documentID)
	return nil
}

// Search finds the limit nearest points to the query using cosine similarity.
func (s *BoltVectorStore) Search(ctx context.Context, collection string, query []float32, limit int) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, notFound(collection)
	}
	if c.dimension > 0 && len(query) != c.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", c.dimension, len(query))
	}

	results := make([]port.VectorResult, 0, len(c.points))
	for id, p := range c.points {
		results = append(results, port.VectorResult{
			ID:      id,
			Score:   cosineSimilarity(query, p.Vector),
			Payload: p.Payload,
		})
	}

	// Sort by score descending
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ID < results[j].ID
		}
		return results[i].Score > results[j].Score
	})

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

func (s *BoltVectorStore) Close() error {
	return s.store.Close()
}

func addToIndex(b *bbolt.Bucket, documentID, pointID string) error {
	var ids []string
	if data := b.Get([]byte(documentID)); data != nil {
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if id == pointID {
			return nil
		}
	}
	data, err := json.Marshal(append(ids, pointID))
	if err != nil {
		return err
	}
	return b.Put([]byte(documentID), data)
}

// rebuildDocIndex recreates a collection's document index from its points.
func rebuildDocIndex(cb *bbolt.Bucket) error {
	if cb.Bucket(bucketDocPoints) != nil {
		if err := cb.DeleteBucket(bucketDocPoints); err != nil {
			return err
		}
	}
	db, err := cb.CreateBucket(bucketDocPoints)
	if err != nil {
		return err
	}
	pb := cb.Bucket(bucketPoints)
	if pb == nil {
		return nil
	}
	return pb.ForEach(func(k, v []byte) error {
		var p storedPoint
		if err := json.Unmarshal(v, &p); err != nil {
			return nil
		}
		return addToIndex(db, p.Payload.DocumentID, string(k))
	})
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
