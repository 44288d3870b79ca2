package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ragengine/internal/adapter/memstore"
	"ragengine/internal/port"
)

const testDim = 3

type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	failOn  map[string]bool
	vectors map[string][]float32
	delay   time.Duration
	onEmbed func()
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		failOn:  map[string]bool{},
		vectors: map[string][]float32{},
	}
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	hook := e.onEmbed
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.failOn[t] {
			return nil, errors.New("model unavailable")
		}
		if v, ok := e.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) Dimension() int    { return testDim }
func (e *fakeEmbedder) ModelName() string { return "fake" }

func (e *fakeEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// scriptedStore serves fixed search hits on top of a real in-memory store.
type scriptedStore struct {
	*memstore.MemoryStore
	hits      []port.VectorResult
	searchErr error
}

func (s *scriptedStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]port.VectorResult, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if s.hits == nil {
		return s.MemoryStore.Search(ctx, collection, vector, limit)
	}
	if limit < len(s.hits) {
		return s.hits[:limit], nil
	}
	return s.hits, nil
}

// failingStore lets individual vector store calls fail.
type failingStore struct {
	*memstore.MemoryStore
	upsertErr error
	deleteErr error
	existsErr error
}

func (s *failingStore) Upsert(ctx context.Context, collection string, items []port.VectorItem) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.MemoryStore.Upsert(ctx, collection, items)
}

func (s *failingStore) DeleteByDocumentID(ctx context.Context, collection, documentID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.DeleteByDocumentID(ctx, collection, documentID)
}

func (s *failingStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.MemoryStore.CollectionExists(ctx, name)
}

// slowStore finishes writes after a fixed delay regardless of ctx, like a
// backend that keeps applying a request the client stopped waiting for.
type slowStore struct {
	*memstore.MemoryStore
	writeDelay time.Duration
}

func (s *slowStore) Upsert(ctx context.Context, collection string, items []port.VectorItem) error {
	time.Sleep(s.writeDelay)
	return s.MemoryStore.Upsert(ctx, collection, items)
}

func (s *slowStore) DeleteByDocumentID(ctx context.Context, collection, documentID string) error {
	time.Sleep(s.writeDelay)
	return s.MemoryStore.DeleteByDocumentID(ctx, collection, documentID)
}

type panickingFiles struct {
	*memstore.FileStore
}

func (p panickingFiles) Exists(ctx context.Context, id string) (bool, error) {
	if id == "explode" {
		panic("boom")
	}
	return p.FileStore.Exists(ctx, id)
}

type fakeReranker struct {
	available bool
	results   []port.RerankedResult
	err       error
}

func (r *fakeReranker) IsAvailable() bool { return r.available }
func (r *fakeReranker) ModelName() string { return "fake-rerank" }
func (r *fakeReranker) Rerank(ctx context.Context, query string, texts []string) ([]port.RerankedResult, error) {
	return r.results, r.err
}

type joinGenerator struct {
	mu      sync.Mutex
	queries []string
	err     error
	panics  bool
	// onGenerate runs before the answer is produced.
	onGenerate func()
}

func (g *joinGenerator) Generate(ctx context.Context, query string, chunkTexts []string) (string, error) {
	if g.panics {
		panic("generator exploded")
	}
	if g.onGenerate != nil {
		g.onGenerate()
	}
	g.mu.Lock()
	g.queries = append(g.queries, query)
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	return strings.Join(chunkTexts, " "), nil
}

func hit(docID, text string, score float64) port.VectorResult {
	return port.VectorResult{
		ID:      "p-" + docID,
		Score:   score,
		Payload: port.Payload{DocumentID: docID, Text: text},
	}
}
