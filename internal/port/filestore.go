package port

import "context"

// FileStore resolves documents by id.
type FileStore interface {
	Exists(ctx context.Context, id string) (bool, error)

	// GetContent returns the document text. An unreadable document yields
	// an empty string or an error.
	GetContent(ctx context.Context, id string) (string, error)
}
