package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"ragengine/internal/adapter/cache"
	"ragengine/internal/domain"
	"ragengine/internal/logging"
	"ragengine/internal/port"
)

// Outcome messages.
const (
	MsgCollectionMissing  = "collection does not exist"
	MsgFileNotFound       = "File not found"
	MsgAlreadyLinked      = "File already linked, unlink first"
	MsgUnreadableContent  = "Could not read file content"
	MsgEmbeddingFailed    = "Failed to generate embedding"
	MsgLinkFailed         = "Failed to link content to collection"
	MsgLinked             = "Successfully linked to collection"
	MsgNotInCollection    = "File not found in collection"
	MsgUnlinkFailed       = "Failed to unlink content from collection"
	MsgUnlinked           = "Successfully unlinked from collection"
	msgInternalErrorStart = "Internal error: "
)

const defaultConcurrency = 4

// LinkOptions configures a LinkUseCase.
type LinkOptions struct {
	Concurrency int               // Items processed in parallel per batch
	StepTimeout time.Duration     // Bound on every port call (0 = none)
	Cache       *cache.QueryCache // Invalidated after successful changes
	Logger      *log.Logger
}

// LinkUseCase links documents into collections and unlinks them again,
// reporting one outcome per requested document.
type LinkUseCase struct {
	vectors     port.VectorStore
	files       port.FileStore
	embedder    port.Embedder
	cache       *cache.QueryCache
	logger      *log.Logger
	concurrency int
	stepTimeout time.Duration
	locks       *keyedMutex
	now         func() time.Time
	newPointID  func() string
}

// NewLinkUseCase creates a new link use case.
func NewLinkUseCase(
	vectors port.VectorStore,
	files port.FileStore,
	embedder port.Embedder,
	opts LinkOptions,
) *LinkUseCase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &LinkUseCase{
		vectors:     vectors,
		files:       files,
		embedder:    embedder,
		cache:       opts.Cache,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		stepTimeout: opts.StepTimeout,
		locks:       newKeyedMutex(),
		now:         time.Now,
		newPointID:  uuid.NewString,
	}
}

// stepError is a classified failure of one pipeline step.
type stepError struct {
	kind    error  // Taxonomy sentinel from the domain package
	message string // Message reported to the caller
	cause   error
}

func (e *stepError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *stepError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func fail(kind error, message string, cause error) error {
	return &stepError{kind: kind, message: message, cause: cause}
}

// outcomeFor turns the result of one item into its outcome.
func outcomeFor(documentID, name, okStatus, failStatus string, err error) domain.Outcome {
	out := domain.Outcome{DocumentID: documentID, Name: name}
	if err == nil {
		out.StatusCode = http.StatusOK
		out.Status = okStatus
		return out
	}

	out.StatusCode, out.Reason = domain.Classify(err)
	out.Status = failStatus

	var se *stepError
	if errors.As(err, &se) {
		out.Message = se.message
	} else {
		out.Message = msgInternalErrorStart + err.Error()
	}
	return out
}

// Link embeds each item's document content and stores it as a point in the
// collection. Items are independent: a failing item never affects its
// siblings, and earlier successes are not rolled back.
func (u *LinkUseCase) Link(ctx context.Context, collection string, items []domain.LinkItem) []domain.Outcome {
	if len(items) == 0 {
		return []domain.Outcome{}
	}

	logger := u.logger
	if err := u.requireCollection(ctx, collection); err != nil {
		logger.Warn().Str("collection", collection).Int("items", len(items)).Err(err).Msg("link batch rejected")
		outcomes := make([]domain.Outcome, len(items))
		for i, item := range items {
			outcomes[i] = outcomeFor(item.DocumentID, item.Name, domain.StatusIndexed, domain.StatusIndexingFailed, err)
		}
		return outcomes
	}

	outcomes := u.runBatch(ctx, len(items), func(ctx context.Context, i int) domain.Outcome {
		item := items[i]
		createdAt, err := u.linkOne(ctx, collection, item)
		out := outcomeFor(item.DocumentID, item.Name, domain.StatusIndexed, domain.StatusIndexingFailed, err)
		if err == nil {
			out.Message = MsgLinked
			out.CreatedAt = &createdAt
		}
		return out
	}, func(i int, err error) domain.Outcome {
		return outcomeFor(items[i].DocumentID, items[i].Name, domain.StatusIndexed, domain.StatusIndexingFailed, err)
	})

	u.finishBatch(collection, "link", outcomes)
	return outcomes
}

func (u *LinkUseCase) linkOne(ctx context.Context, collection string, item domain.LinkItem) (time.Time, error) {
	found, err := callStep(ctx, u.stepTimeout, func(ctx context.Context) (bool, error) {
		return u.files.Exists(ctx, item.DocumentID)
	})
	if err != nil {
		return time.Time{}, err
	}
	if !found {
		return time.Time{}, fail(domain.ErrNotFound, MsgFileNotFound, nil)
	}

	// The existence check and the upsert must not interleave with another
	// attempt on the same document.
	unlock := u.locks.Lock(linkKey(collection, item.DocumentID))
	defer unlock()

	linked, err := callStep(ctx, u.stepTimeout, func(ctx context.Context) (bool, error) {
		return u.vectors.PointExists(ctx, collection, item.DocumentID)
	})
	if err != nil {
		return time.Time{}, err
	}
	if linked {
		return time.Time{}, fail(domain.ErrConflict, MsgAlreadyLinked, nil)
	}

	content, err := callStep(ctx, u.stepTimeout, func(ctx context.Context) (string, error) {
		return u.files.GetContent(ctx, item.DocumentID)
	})
	if err != nil || strings.TrimSpace(content) == "" {
		return time.Time{}, fail(domain.ErrUnreadableContent, MsgUnreadableContent, err)
	}

	vector, err := embedOne(ctx, u.embedder, u.stepTimeout, content)
	if err != nil {
		return time.Time{}, fail(domain.ErrEmbeddingFailure, MsgEmbeddingFailed, err)
	}

	point := port.VectorItem{
		ID:     u.newPointID(),
		Vector: vector,
		Payload: port.Payload{
			DocumentID: item.DocumentID,
			Text:       content,
			Source:     item.Field,
			Metadata: map[string]string{
				"file_type": item.Field,
				"name":      item.Name,
			},
		},
	}
	// A timed-out upsert may still land; the lock stays held until it returns
	// so the next attempt sees its point.
	_, err, settled := callStepSettled(ctx, u.stepTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, u.vectors.Upsert(ctx, collection, []port.VectorItem{point})
	})
	<-settled
	if err != nil {
		return time.Time{}, fail(domain.ErrStoreFailure, MsgLinkFailed, err)
	}

	return u.now().UTC(), nil
}

// Unlink removes the points of each document from the collection. The file
// store is never touched.
func (u *LinkUseCase) Unlink(ctx context.Context, collection string, documentIDs []string) []domain.Outcome {
	if len(documentIDs) == 0 {
		return []domain.Outcome{}
	}

	if err := u.requireCollection(ctx, collection); err != nil {
		u.logger.Warn().Str("collection", collection).Int("items", len(documentIDs)).Err(err).Msg("unlink batch rejected")
		outcomes := make([]domain.Outcome, len(documentIDs))
		for i, id := range documentIDs {
			outcomes[i] = outcomeFor(id, "", domain.StatusUnlinked, domain.StatusUnlinkFailed, err)
		}
		return outcomes
	}

	outcomes := u.runBatch(ctx, len(documentIDs), func(ctx context.Context, i int) domain.Outcome {
		id := documentIDs[i]
		err := u.unlinkOne(ctx, collection, id)
		out := outcomeFor(id, "", domain.StatusUnlinked, domain.StatusUnlinkFailed, err)
		if err == nil {
			out.Message = MsgUnlinked
		}
		return out
	}, func(i int, err error) domain.Outcome {
		return outcomeFor(documentIDs[i], "", domain.StatusUnlinked, domain.StatusUnlinkFailed, err)
	})

	u.finishBatch(collection, "unlink", outcomes)
	return outcomes
}

func (u *LinkUseCase) unlinkOne(ctx context.Context, collection, documentID string) error {
	unlock := u.locks.Lock(linkKey(collection, documentID))
	defer unlock()

	linked, err := callStep(ctx, u.stepTimeout, func(ctx context.Context) (bool, error) {
		return u.vectors.PointExists(ctx, collection, documentID)
	})
	if err != nil {
		return err
	}
	if !linked {
		return fail(domain.ErrNotFound, MsgNotInCollection, nil)
	}

	_, err, settled := callStepSettled(ctx, u.stepTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, u.vectors.DeleteByDocumentID(ctx, collection, documentID)
	})
	<-settled
	if err != nil {
		return fail(domain.ErrStoreFailure, MsgUnlinkFailed, err)
	}
	return nil
}

// requireCollection returns a classified error when the collection cannot be
// used for a batch.
func (u *LinkUseCase) requireCollection(ctx context.Context, collection string) error {
	exists, err := callStep(ctx, u.stepTimeout, func(ctx context.Context) (bool, error) {
		return u.vectors.CollectionExists(ctx, collection)
	})
	if err != nil {
		return fmt.Errorf("failed to check collection %q: %w", collection, err)
	}
	if !exists {
		return fail(domain.ErrNotFound, MsgCollectionMissing, nil)
	}
	return nil
}

// runBatch runs work for every index with bounded parallelism and collects
// the outcomes in input order. Once ctx is done no further items are
// scheduled; those items get the outcome produced by skipped.
func (u *LinkUseCase) runBatch(
	ctx context.Context,
	n int,
	work func(ctx context.Context, i int) domain.Outcome,
	skipped func(i int, err error) domain.Outcome,
) []domain.Outcome {
	outcomes := make([]domain.Outcome, n)
	done := make([]bool, n)

	var g errgroup.Group
	g.SetLimit(u.concurrency)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = skipped(i, fmt.Errorf("panic: %v", r))
				}
				done[i] = true
			}()
			outcomes[i] = work(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	for i := range outcomes {
		if !done[i] {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			outcomes[i] = skipped(i, err)
		}
	}
	return outcomes
}

func (u *LinkUseCase) finishBatch(collection, op string, outcomes []domain.Outcome) {
	succeeded := 0
	for _, out := range outcomes {
		if out.Succeeded() {
			succeeded++
		}
		u.logger.Debug().
			Str("collection", collection).
			Str("op", op).
			Str("document_id", out.DocumentID).
			Int("status_code", out.StatusCode).
			Str("status", out.Status).
			Msg(out.Message)
	}

	if succeeded > 0 && u.cache != nil {
		u.cache.Invalidate(collection)
	}

	u.logger.Info().
		Str("collection", collection).
		Str("op", op).
		Int("items", len(outcomes)).
		Int("succeeded", succeeded).
		Int("failed", len(outcomes)-succeeded).
		Msg("batch complete")
}
