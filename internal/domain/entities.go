package domain

import "time"

// Outcome labels reported with every link and unlink result.
const (
	StatusIndexed        = "INDEXED"
	StatusIndexingFailed = "INDEXING_FAILED"
	StatusUnlinked       = "UNLINKED"
	StatusUnlinkFailed   = "UNLINK_FAILED"
)

// Batch link status values.
const (
	LinkStateIndexed  = "indexed"
	LinkStateNotFound = "not_found"
	LinkStateError    = "error"
)

type Collection struct {
	Name string `json:"name"`
}

type CollectionStatus struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	PointsCount uint64 `json:"points_count"`
}

// FileInfo describes a document held by the file store.
type FileInfo struct {
	ID         string    `json:"file_id"`
	Name       string    `json:"filename"`
	Size       int64     `json:"file_size"`
	UploadedAt time.Time `json:"upload_date"`
	Path       string    `json:"path,omitempty"`
}

// LinkItem is one document to link into a collection.
type LinkItem struct {
	Name       string `json:"name"`
	DocumentID string `json:"id"`
	Field      string `json:"field"`
}

// Chunk is a bounded excerpt of a stored document surfaced as evidence.
type Chunk struct {
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type QueryResult struct {
	Answer      string  `json:"answer"`
	Confidence  float64 `json:"confidence"`
	Relevant    bool    `json:"relevant"`
	MissingInfo string  `json:"missing_info,omitempty"`
	Chunks      []Chunk `json:"chunks"`
}

// Outcome is the per-item result of a link or unlink batch.
type Outcome struct {
	DocumentID string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	StatusCode int        `json:"status_code"`
	Status     string     `json:"indexing_status"`
	Reason     string     `json:"reason,omitempty"`
	Message    string     `json:"message"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// Succeeded reports whether the outcome carries a 2xx status.
func (o Outcome) Succeeded() bool {
	return o.StatusCode >= 200 && o.StatusCode < 300
}
