package domain

import (
	"errors"
	"net/http"
)

// Failure taxonomy shared by the orchestrator and the query pipeline.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrConflict          = errors.New("conflict")
	ErrUnreadableContent = errors.New("unreadable content")
	ErrEmbeddingFailure  = errors.New("embedding failure")
	ErrStoreFailure      = errors.New("store failure")
	ErrInternal          = errors.New("internal error")
)

// Reason labels carried by failed outcomes.
const (
	ReasonNotFound          = "not_found"
	ReasonConflict          = "conflict"
	ReasonUnreadableContent = "unreadable_content"
	ReasonEmbeddingFailure  = "embedding_failure"
	ReasonStoreFailure      = "store_failure"
	ReasonInternal          = "internal"
)

// Classify maps an error onto its HTTP-style status code and reason label.
// Errors outside the taxonomy are internal.
func Classify(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, ReasonNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict, ReasonConflict
	case errors.Is(err, ErrUnreadableContent):
		return http.StatusInternalServerError, ReasonUnreadableContent
	case errors.Is(err, ErrEmbeddingFailure):
		return http.StatusInternalServerError, ReasonEmbeddingFailure
	case errors.Is(err, ErrStoreFailure):
		return http.StatusInternalServerError, ReasonStoreFailure
	default:
		return http.StatusInternalServerError, ReasonInternal
	}
}
