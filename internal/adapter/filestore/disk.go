package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"ragengine/internal/domain"
	"ragengine/internal/port"
)

var _ port.FileStore = (*DiskStore)(nil)

var bucketFiles = []byte("files")

// DiskStore keeps uploaded documents as "<id>_<name>" files in one directory
// and records their metadata in a bbolt index. Files dropped into the
// directory by hand are still found by their id prefix.
type DiskStore struct {
	dir string
	db  *bbolt.DB
	now func() time.Time
}

// NewDiskStore creates dir if needed and opens the metadata index at indexPath.
func NewDiskStore(dir, indexPath string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	db, err := bbolt.Open(indexPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open file index: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFiles)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucketFiles, err)
	}

	return &DiskStore{dir: dir, db: db, now: time.Now}, nil
}

func (s *DiskStore) Close() error {
	return s.db.Close()
}

// Upload writes r under a fresh id and returns its metadata.
func (s *DiskStore) Upload(ctx context.Context, name string, r io.Reader) (domain.FileInfo, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return domain.FileInfo{}, errors.New("file name must not be empty")
	}

	id := uuid.NewString()
	path := filepath.Join(s.dir, id+"_"+name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return domain.FileInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, readerWithContext(ctx, r))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return domain.FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}

	info := domain.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: s.now().UTC(),
		Path:       path,
	}
	if err := s.put(info); err != nil {
		os.Remove(path)
		return domain.FileInfo{}, err
	}
	return info, nil
}

func (s *DiskStore) put(info domain.FileInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFiles).Put([]byte(info.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to index file: %w", err)
	}
	return nil
}

// List returns every indexed file, oldest first.
func (s *DiskStore) List(ctx context.Context) ([]domain.FileInfo, error) {
	var files []domain.FileInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, v []byte) error {
			var info domain.FileInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return nil // Skip corrupted entries
			}
			files = append(files, info)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].UploadedAt.Equal(files[j].UploadedAt) {
			return files[i].ID < files[j].ID
		}
		return files[i].UploadedAt.Before(files[j].UploadedAt)
	})
	return files, nil
}

// Get returns a file's metadata or an error wrapping domain.ErrNotFound.
func (s *DiskStore) Get(ctx context.Context, id string) (domain.FileInfo, error) {
	if info, ok, err := s.lookup(id); err != nil || ok {
		return info, err
	}

	path, err := s.glob(id)
	if err != nil {
		return domain.FileInfo{}, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return domain.FileInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	return domain.FileInfo{
		ID:         id,
		Name:       strings.TrimPrefix(filepath.Base(path), id+"_"),
		Size:       st.Size(),
		UploadedAt: st.ModTime().UTC(),
		Path:       path,
	}, nil
}

func (s *DiskStore) lookup(id string) (domain.FileInfo, bool, error) {
	var info domain.FileInfo
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &info)
	})
	if err != nil {
		return domain.FileInfo{}, false, fmt.Errorf("failed to read file index: %w", err)
	}
	return info, found, nil
}

// glob finds an unindexed file by its "<id>_" prefix.
func (s *DiskStore) glob(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `*?[]{}\/`) {
		return "", fmt.Errorf("%w: file %s", domain.ErrNotFound, id)
	}
	matches, err := doublestar.Glob(os.DirFS(s.dir), id+"_*")
	if err != nil {
		return "", fmt.Errorf("failed to search upload dir: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: file %s", domain.ErrNotFound, id)
	}
	sort.Strings(matches)
	return filepath.Join(s.dir, filepath.FromSlash(matches[0])), nil
}

func (s *DiskStore) Exists(ctx context.Context, id string) (bool, error) {
	info, err := s.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(info.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// GetContent reads the file as UTF-8, dropping invalid byte sequences.
func (s *DiskStore) GetContent(ctx context.Context, id string) (string, error) {
	info, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(info.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: file %s", domain.ErrNotFound, id)
		}
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// Delete removes the file and its index entry. It reports false when the id
// is unknown.
func (s *DiskStore) Delete(ctx context.Context, id string) (bool, error) {
	info, err := s.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := os.Remove(info.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to delete file: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFiles).Delete([]byte(id))
	})
	if err != nil {
		return false, fmt.Errorf("failed to update file index: %w", err)
	}
	return true, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
