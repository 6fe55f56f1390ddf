package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/neurospin/epac/pkg/domain"
)

const (
	entryExt = ".json"
	blobExt  = ".gob"
	blobDir  = "_blobs"

	// blobLoadAttempts bounds the retry loop on transient blob-read
	// failures.
	blobLoadAttempts = 10
)

func init() {
	gob.Register(domain.FloatMatrix{})
	gob.Register(domain.FloatVector{})
	gob.Register(domain.IntVector{})
	gob.Register(domain.StringVector{})
}

// FSStore implements ports.Store on the local filesystem. Entries are JSON
// envelope files laid out by key segments under the base directory. Large
// array fields of saved objects are segregated into a gob-encoded blob
// region under "_blobs", indexed by generated opaque handles, and
// re-substituted at load time.
type FSStore struct {
	basePath      string
	blobThreshold int
}

// FSOption configures an FSStore.
type FSOption func(*FSStore)

// WithBlobThreshold sets the minimum first-axis length above which an array
// field is segregated into the blob region. Default 256 rows.
func WithBlobThreshold(rows int) FSOption {
	return func(s *FSStore) {
		s.blobThreshold = rows
	}
}

// NewFSStore creates a filesystem store rooted at basePath.
func NewFSStore(basePath string, opts ...FSOption) (*FSStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("basePath cannot be empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure store directory: %w", err)
	}
	s := &FSStore{basePath: basePath, blobThreshold: 256}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *FSStore) entryPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key)+entryExt)
}

func (s *FSStore) blobPath(handle string) string {
	return filepath.Join(s.basePath, blobDir, handle+blobExt)
}

// Save persists obj under key. Blob-eligible fields are written to the blob
// region first so a crash between the two writes leaves no dangling
// references.
func (s *FSStore) Save(ctx context.Context, key string, obj any, merge bool) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if merge {
		existing, err := s.Load(ctx, key)
		switch {
		case err == nil:
			merged, mErr := MergeValue(existing, obj)
			if mErr != nil {
				return mErr
			}
			obj = merged
		case isNotFound(err):
		default:
			return err
		}
	}

	if holder, ok := obj.(domain.BlobHolder); ok {
		clone, blobs := holder.ExtractBlobs(s.blobThreshold, uuid.NewString)
		for handle, arr := range blobs {
			if err := s.writeBlob(handle, arr); err != nil {
				return err
			}
		}
		obj = clone
	}

	data, err := EncodeEntry(obj)
	if err != nil {
		return err
	}
	path := s.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to ensure entry directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write entry %q: %w", key, err)
	}
	return nil
}

// Load returns the object at key, or a prefix aggregate of relative sub-key
// to object when key only prefixes other entries.
func (s *FSStore) Load(ctx context.Context, key string) (any, error) {
	data, err := os.ReadFile(s.entryPath(key))
	if err == nil {
		return s.decode(data)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read entry %q: %w", key, err)
	}

	keys, err := s.Keys(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("entry %q: %w", key, domain.ErrKeyNotFound)
	}
	agg := make(map[string]any, len(keys))
	prefix := ""
	if key != "" {
		prefix = key + domain.KeySep
	}
	for _, k := range keys {
		obj, err := s.Load(ctx, k)
		if err != nil {
			return nil, err
		}
		agg[strings.TrimPrefix(k, prefix)] = obj
	}
	return agg, nil
}

// Keys lists every entry key under prefix, sorted.
func (s *FSStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == blobDir {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != entryExt {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(strings.TrimSuffix(rel, entryExt))
		if underPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list store keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FSStore) decode(data []byte) (any, error) {
	obj, err := DecodeEntry(data)
	if err != nil {
		return nil, err
	}
	if holder, ok := obj.(domain.BlobHolder); ok {
		return holder.RestoreBlobs(s.loadBlob)
	}
	return obj, nil
}

type blobEnvelope struct {
	Arr domain.Array
}

func (s *FSStore) writeBlob(handle string, arr domain.Array) error {
	if err := os.MkdirAll(filepath.Join(s.basePath, blobDir), 0o755); err != nil {
		return fmt.Errorf("failed to ensure blob directory: %w", err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blobEnvelope{Arr: arr}); err != nil {
		return fmt.Errorf("failed to encode blob %s: %w", handle, err)
	}
	if err := os.WriteFile(s.blobPath(handle), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", handle, err)
	}
	return nil
}

// loadBlob reads a blob with a bounded retry on transient failures.
func (s *FSStore) loadBlob(handle string) (domain.Array, error) {
	var lastErr error
	for attempt := 0; attempt < blobLoadAttempts; attempt++ {
		data, err := os.ReadFile(s.blobPath(handle))
		if err != nil {
			lastErr = err
			continue
		}
		var env blobEnvelope
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
			lastErr = err
			continue
		}
		return env.Arr, nil
	}
	return nil, fmt.Errorf("failed to load blob %s after %d attempts: %w", handle, blobLoadAttempts, lastErr)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrKeyNotFound)
}
