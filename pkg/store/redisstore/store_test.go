package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurospin/epac/pkg/ports/tests"
	"github.com/neurospin/epac/pkg/store/redisstore"
)

func newTestStore(t *testing.T, opts ...redisstore.Option) *redisstore.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := redisstore.NewFromClient(client, opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStoreContract(t *testing.T) {
	tests.RunStoreContract(t, newTestStore(t))
}

func TestRedisStorePrefixIsolation(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})

	a := redisstore.NewFromClient(client, redisstore.WithPrefix("a:"))
	b := redisstore.NewFromClient(client, redisstore.WithPrefix("b:"))

	require.NoError(t, a.Save(ctx, "run/result", 1.0, false))

	keys, err := b.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys, "stores with distinct prefixes must not see each other")

	keys, err = a.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"run/result"}, keys)
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := redisstore.NewFromClient(client, redisstore.WithTTL(time.Minute))

	require.NoError(t, s.Save(ctx, "run/result", 1.0, false))

	mr.FastForward(2 * time.Minute)

	_, err := s.Load(ctx, "run/result")
	require.Error(t, err, "expired entries must be gone")
}
