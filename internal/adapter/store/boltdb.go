package store

import (
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	bucketCollections = []byte("collections")
	bucketMeta        = []byte("meta")

	// Per-collection sub-buckets.
	bucketPoints    = []byte("points")
	bucketDocPoints = []byte("doc_points")
	keyCollection   = []byte("collection")
)

// BoltStore owns the bbolt database file backing the local vector store.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketCollections, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
