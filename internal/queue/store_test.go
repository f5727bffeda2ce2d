package queue_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image-studio-backend/internal/queue"
)

func sampleItems() []queue.Item {
	return []queue.Item{
		{ID: "1", Name: "a.png", Payload: pngHeader, ContentType: "image/png", Status: queue.StatusCompleted, ResultRef: "https://cdn.example/1"},
		{ID: "2", Name: "b.png", Payload: pngHeader, ContentType: "image/png", Status: queue.StatusError, ErrorMessage: "bad gateway"},
		{ID: "3", Name: "c.png", Payload: pngHeader, ContentType: "image/png", Status: queue.StatusPending},
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "queue.json")
	store := queue.NewFileStore(path)

	items, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, store.Save(ctx, sampleItems()))
	items, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleItems(), items)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	require.NoError(t, store.Delete(ctx))
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	require.NoError(t, store.Delete(ctx))
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := queue.NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFileStore_SurvivesManagerRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.json")

	first := queue.NewManager(queue.NewFileStore(path), nil)
	require.NoError(t, first.Load(ctx))
	_, err := first.Add(ctx, files(2))
	require.NoError(t, err)

	second := queue.NewManager(queue.NewFileStore(path), nil)
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, first.Items(), second.Items())
}

// fakeRedis implements queue.RedisKV over a map.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	kv := newFakeRedis()
	store := queue.NewRedisStore(kv, "image-studio:queue:test", 24*time.Hour)

	items, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, store.Save(ctx, sampleItems()))
	assert.Equal(t, 24*time.Hour, kv.ttl["image-studio:queue:test"])

	items, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleItems(), items)

	require.NoError(t, store.Delete(ctx))
	_, ok := kv.data["image-studio:queue:test"]
	assert.False(t, ok)
}

func TestRedisStore_Errors(t *testing.T) {
	kv := newFakeRedis()
	kv.err = errors.New("connection refused")
	store := queue.NewRedisStore(kv, "k", 0)

	_, err := store.Load(context.Background())
	assert.ErrorContains(t, err, "connection refused")
	assert.Error(t, store.Save(context.Background(), sampleItems()))
}

func TestRedisStore_BacksManager(t *testing.T) {
	ctx := context.Background()
	store := queue.NewRedisStore(newFakeRedis(), "q", 0)
	m := queue.NewManager(store, nil)

	_, err := m.Add(ctx, files(2))
	require.NoError(t, err)
	assertMirrored(t, m, store)
}
