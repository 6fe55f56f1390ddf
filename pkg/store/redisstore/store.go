// Package redisstore implements ports.Store on Redis, for fleets of workers
// sharing one result store.
package redisstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/store"
)

const blobLoadAttempts = 10

// Store implements ports.Store using Redis. Entries are JSON envelopes;
// blob-eligible array fields live under a separate handle-indexed key space.
// Merge-on-save is read-modify-write: concurrent merging writers to the same
// key must be externally serialized.
type Store struct {
	client        *backend.Client
	prefix        string
	ttl           time.Duration
	blobThreshold int
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for entries.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for entries.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithBlobThreshold sets the minimum first-axis length above which an array
// field is segregated into the blob key space. Default 256 rows.
func WithBlobThreshold(rows int) Option {
	return func(s *Store) {
		s.blobThreshold = rows
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client:        client,
		prefix:        "epac:",
		ttl:           0, // No expiration by default
		blobThreshold: 256,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) entryKey(key string) string {
	return s.prefix + "entry:" + key
}

func (s *Store) blobKey(handle string) string {
	return s.prefix + "blob:" + handle
}

// Save persists obj under key.
func (s *Store) Save(ctx context.Context, key string, obj any, merge bool) error {
	if merge {
		existing, err := s.Load(ctx, key)
		switch {
		case err == nil:
			merged, mErr := store.MergeValue(existing, obj)
			if mErr != nil {
				return mErr
			}
			obj = merged
		case isNotFound(err):
		default:
			return err
		}
	}

	pipe := s.client.Pipeline()
	if holder, ok := obj.(domain.BlobHolder); ok {
		clone, blobs := holder.ExtractBlobs(s.blobThreshold, uuid.NewString)
		for handle, arr := range blobs {
			data, err := encodeBlob(arr)
			if err != nil {
				return err
			}
			pipe.Set(ctx, s.blobKey(handle), data, s.ttl)
		}
		obj = clone
	}
	data, err := store.EncodeEntry(obj)
	if err != nil {
		return err
	}
	pipe.Set(ctx, s.entryKey(key), data, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load returns the object at key, or a prefix aggregate when key only
// prefixes other entries.
func (s *Store) Load(ctx context.Context, key string) (any, error) {
	val, err := s.client.Get(ctx, s.entryKey(key)).Result()
	if err == nil {
		return s.decode(ctx, []byte(val))
	}
	if err != backend.Nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	keys, err := s.Keys(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("entry %q: %w", key, domain.ErrKeyNotFound)
	}
	prefix := ""
	if key != "" {
		prefix = key + domain.KeySep
	}
	agg := make(map[string]any, len(keys))
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
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.entryKey("")+"*", 256).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan redis keys: %w", err)
		}
		for _, raw := range batch {
			key := strings.TrimPrefix(raw, s.entryKey(""))
			if underPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) decode(ctx context.Context, data []byte) (any, error) {
	obj, err := store.DecodeEntry(data)
	if err != nil {
		return nil, err
	}
	if holder, ok := obj.(domain.BlobHolder); ok {
		return holder.RestoreBlobs(func(handle string) (domain.Array, error) {
			return s.loadBlob(ctx, handle)
		})
	}
	return obj, nil
}

// loadBlob reads a blob with a bounded retry on transient failures.
func (s *Store) loadBlob(ctx context.Context, handle string) (domain.Array, error) {
	var lastErr error
	for attempt := 0; attempt < blobLoadAttempts; attempt++ {
		data, err := s.client.Get(ctx, s.blobKey(handle)).Bytes()
		if err != nil {
			lastErr = err
			continue
		}
		arr, err := decodeBlob(data)
		if err != nil {
			lastErr = err
			continue
		}
		return arr, nil
	}
	return nil, fmt.Errorf("failed to load blob %s after %d attempts: %w", handle, blobLoadAttempts, lastErr)
}

type blobEnvelope struct {
	Arr domain.Array
}

func encodeBlob(arr domain.Array) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blobEnvelope{Arr: arr}); err != nil {
		return nil, fmt.Errorf("failed to encode blob: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeBlob(data []byte) (domain.Array, error) {
	var env blobEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode blob: %w", err)
	}
	return env.Arr, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrKeyNotFound)
}

func underPrefix(key, prefix string) bool {
	if prefix == "" {
		return true
	}
	return key == prefix || strings.HasPrefix(key, prefix+domain.KeySep)
}
