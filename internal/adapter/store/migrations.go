package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"ragengine/config"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 2

var (
	keySchemaVersion = []byte("schema_version")
	keyEmbeddingHash = []byte("embedding_hash")
)

// SchemaInfo stores schema version and the embedding configuration the
// stored vectors were produced with.
type SchemaInfo struct {
	Version       int    `json:"version"`
	EmbeddingHash string `json:"embedding_hash"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}

		if data := b.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				info.Version = 1
			}
		}
		if data := b.Get(keyEmbeddingHash); data != nil {
			info.EmbeddingHash = string(data)
		}
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}
		return b.Put(keyEmbeddingHash, []byte(info.EmbeddingHash))
	})
}

// ComputeEmbeddingHash hashes the settings that determine vector contents.
// Vectors produced under a different hash are not comparable with new ones.
func ComputeEmbeddingHash(cfg *config.Config) string {
	relevant := struct {
		Provider  string `json:"provider"`
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
	}{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRelink    bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration reports whether the schema must be upgraded and whether
// stored vectors were produced by a different embedding setup.
func (s *BoltStore) CheckMigration(cfg *config.Config) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	case info.Version > CurrentSchemaVersion:
		return nil, fmt.Errorf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
	}

	if info.EmbeddingHash != "" && info.EmbeddingHash != ComputeEmbeddingHash(cfg) {
		result.NeedsRelink = true
		result.Reason = "embedding configuration changed; relink documents"
	}

	return result, nil
}

// Migrate performs any necessary schema migrations and records the current
// embedding configuration.
func (s *BoltStore) Migrate(cfg *config.Config) error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}

	for v := info.Version; v < CurrentSchemaVersion; v++ {
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}

	return s.SetSchemaInfo(&SchemaInfo{
		Version:       CurrentSchemaVersion,
		EmbeddingHash: ComputeEmbeddingHash(cfg),
	})
}

func (s *BoltStore) runMigration(from, to int) error {
	switch {
	case from == 1 && to == 2:
		// v2 adds the document index to every collection.
		return s.db.Update(func(tx *bbolt.Tx) error {
			root := tx.Bucket(bucketCollections)
			return root.ForEach(func(name, v []byte) error {
				if v != nil {
					return nil
				}
				return rebuildDocIndex(root.Bucket(name))
			})
		})
	default:
		return nil
	}
}

// OpenVectorStore opens the database at path, brings its schema up to date for
// cfg and loads the vectors. The returned check tells the caller whether the
// stored vectors came from a different embedding setup.
func OpenVectorStore(path string, cfg *config.Config) (*BoltVectorStore, *MigrationResult, error) {
	bs, err := NewBoltStore(path)
	if err != nil {
		return nil, nil, err
	}

	check, err := bs.CheckMigration(cfg)
	if err != nil {
		bs.Close()
		return nil, nil, fmt.Errorf("failed to check migration: %w", err)
	}
	if check.NeedsMigration || check.NeedsRelink {
		if err := bs.Migrate(cfg); err != nil {
			bs.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	vs, err := NewBoltVectorStore(bs)
	if err != nil {
		bs.Close()
		return nil, nil, err
	}
	return vs, check, nil
}
