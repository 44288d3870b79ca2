package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"ragengine/internal/domain"
	"ragengine/internal/port"
)

var (
	_ port.VectorStore = (*MemoryStore)(nil)
	_ port.FileStore   = (*FileStore)(nil)
)

// MemoryStore is an in-process vector store with brute-force cosine search.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	dimension int
	points    map[string]port.VectorItem
	docPoints map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*collection),
	}
}

func (s *MemoryStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *MemoryStore) CreateCollection(ctx context.Context, name string, dimension int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return false, nil
	}
	s.collections[name] = &collection{
		dimension: dimension,
		points:    make(map[string]port.VectorItem),
		docPoints: make(map[string][]string),
	}
	return true, nil
}

func (s *MemoryStore) DeleteCollection(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return false, nil
	}
	delete(s.collections, name)
	return true, nil
}

func (s *MemoryStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) CollectionStatus(ctx context.Context, name string) (domain.CollectionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return domain.CollectionStatus{}, fmt.Errorf("%w: collection %s", domain.ErrNotFound, name)
	}
	return domain.CollectionStatus{
		Name:        name,
		Status:      "green",
		PointsCount: uint64(len(c.points)),
	}, nil
}

func (s *MemoryStore) PointExists(ctx context.Context, collectionName, documentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return false, fmt.Errorf("%w: collection %s", domain.ErrNotFound, collectionName)
	}
	return len(c.docPoints[documentID]) > 0, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, collectionName string, items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return fmt.Errorf("%w: collection %s", domain.ErrNotFound, collectionName)
	}
	for _, item := range items {
		if c.dimension > 0 && len(item.Vector) != c.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", c.dimension, len(item.Vector))
		}
	}
	for _, item := range items {
		if old, exists := c.points[item.ID]; exists {
			c.docPoints[old.Payload.DocumentID] = removeID(c.docPoints[old.Payload.DocumentID], item.ID)
		}
		c.points[item.ID] = item
		c.docPoints[item.Payload.DocumentID] = append(c.docPoints[item.Payload.DocumentID], item.ID)
	}
	return nil
}

func (s *MemoryStore) DeleteByDocumentID(ctx context.Context, collectionName, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return fmt.Errorf("%w: collection %s", domain.ErrNotFound, collectionName)
	}
	for _, id := range c.docPoints[documentID] {
		delete(c.points, id)
	}
	delete(c.docPoints, documentID)
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, collectionName string, vector []float32, limit int) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", domain.ErrNotFound, collectionName)
	}

	results := make([]port.VectorResult, 0, len(c.points))
	for id, item := range c.points {
		results = append(results, port.VectorResult{
			ID:      id,
			Score:   CosineSimilarity(vector, item.Vector),
			Payload: item.Payload,
		})
	}

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

func (s *MemoryStore) Close() error {
	return nil
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

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
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

// FileStore keeps document contents in memory.
type FileStore struct {
	mu    sync.RWMutex
	files map[string]domain.FileInfo
	data  map[string]string
}

func NewFileStore() *FileStore {
	return &FileStore{
		files: make(map[string]domain.FileInfo),
		data:  make(map[string]string),
	}
}

// Put stores a document under the given id.
func (s *FileStore) Put(id, name, content string) domain.FileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := domain.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(content)),
		UploadedAt: time.Now(),
	}
	s.files[id] = info
	s.data[id] = content
	return info
}

func (s *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[id]
	return ok, nil
}

func (s *FileStore) GetContent(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.data[id]
	if !ok {
		return "", fmt.Errorf("%w: file %s", domain.ErrNotFound, id)
	}
	return content, nil
}

func (s *FileStore) List(ctx context.Context) ([]domain.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]domain.FileInfo, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}
