package port

import (
	"context"

	"ragengine/internal/domain"
)

// VectorStore manages named collections of embedded points.
type VectorStore interface {
	// CollectionExists reports whether the named collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// CreateCollection creates a collection. Returns false if it already exists.
	CreateCollection(ctx context.Context, name string, dimension int) (bool, error)

	// DeleteCollection drops a collection and every point in it.
	// Returns false if the collection did not exist.
	DeleteCollection(ctx context.Context, name string) (bool, error)

	ListCollections(ctx context.Context) ([]string, error)

	CollectionStatus(ctx context.Context, name string) (domain.CollectionStatus, error)

	// PointExists reports whether any point in the collection carries the document id.
	PointExists(ctx context.Context, collection, documentID string) (bool, error)

	// Upsert adds or replaces points.
	Upsert(ctx context.Context, collection string, items []VectorItem) error

	// DeleteByDocumentID removes every point tagged with the document id.
	DeleteByDocumentID(ctx context.Context, collection, documentID string) error

	// Search finds the limit nearest points to the query vector.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]VectorResult, error)

	Close() error
}

// VectorItem represents a point to be stored.
type VectorItem struct {
	ID      string    // Point id, a UUID
	Vector  []float32 // Embedding vector
	Payload Payload
}

// Payload is the data stored alongside a point.
type Payload struct {
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text"`
	Source     string            `json:"source"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// VectorResult represents a search hit.
type VectorResult struct {
	ID      string  // Point id
	Score   float64 // Similarity score (higher is better)
	Payload Payload
}
