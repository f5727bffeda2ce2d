package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image-studio-backend/internal/queue"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type submitFunc func(ctx context.Context, item queue.Item, opts queue.Options) (string, error)

func (f submitFunc) Submit(ctx context.Context, item queue.Item, opts queue.Options) (string, error) {
	return f(ctx, item, opts)
}

type recorder struct {
	mu      sync.Mutex
	notices []queue.Notice
}

func (r *recorder) notify(n queue.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) kinds() []queue.NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []queue.NoticeKind
	for _, n := range r.notices {
		out = append(out, n.Kind)
	}
	return out
}

func files(n int) []queue.File {
	out := make([]queue.File, n)
	for i := range out {
		out[i] = queue.File{Name: fmt.Sprintf("photo-%02d.png", i), Data: pngHeader}
	}
	return out
}

func assertMirrored(t *testing.T, m *queue.Manager, store queue.Store) {
	t.Helper()
	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m.Items(), persisted)
}

func statuses(items []queue.Item) []queue.Status {
	out := make([]queue.Status, len(items))
	for i, it := range items {
		out[i] = it.Status
	}
	return out
}

func TestManager_AddRemoveClearMirrorStore(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	m := queue.NewManager(store, nil)
	require.NoError(t, m.Load(ctx))

	added, err := m.Add(ctx, files(3))
	require.NoError(t, err)
	require.Len(t, added, 3)
	assertMirrored(t, m, store)

	for _, it := range added {
		assert.Equal(t, queue.StatusPending, it.Status)
		assert.Equal(t, "image/png", it.ContentType)
		assert.NotEmpty(t, it.PreviewURI)
		assert.NotEmpty(t, it.ID)
	}

	require.NoError(t, m.Remove(ctx, added[1].ID))
	assertMirrored(t, m, store)
	assert.Equal(t, []string{added[0].ID, added[2].ID}, []string{m.Items()[0].ID, m.Items()[1].ID})

	assert.ErrorIs(t, m.Remove(ctx, "missing"), queue.ErrNotFound)

	_, err = m.Add(ctx, files(2))
	require.NoError(t, err)
	assertMirrored(t, m, store)

	require.NoError(t, m.Clear(ctx))
	assert.Empty(t, m.Items())
	assert.False(t, store.Present())
}

func TestManager_AddOverCapRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	m := queue.NewManager(store, nil)

	_, err := m.Add(ctx, files(21))

	assert.ErrorIs(t, err, queue.ErrQueueFull)
	assert.Empty(t, m.Items())
	assert.False(t, store.Present())
}

func TestManager_AddUpToCap(t *testing.T) {
	ctx := context.Background()
	m := queue.NewManager(queue.NewMemoryStore(), nil)

	_, err := m.Add(ctx, files(queue.MaxItems-1))
	require.NoError(t, err)
	_, err = m.Add(ctx, files(2))
	assert.ErrorIs(t, err, queue.ErrQueueFull)
	_, err = m.Add(ctx, files(1))
	assert.NoError(t, err)
	assert.Len(t, m.Items(), queue.MaxItems)
}

func TestManager_AddRejectsNonImages(t *testing.T) {
	m := queue.NewManager(queue.NewMemoryStore(), nil)

	batch := append(files(1), queue.File{Name: "notes.txt", Data: []byte("hello world")})
	_, err := m.Add(context.Background(), batch)

	assert.ErrorIs(t, err, queue.ErrUnsupportedType)
	assert.Empty(t, m.Items())
}

func TestManager_StoragePressureNotice(t *testing.T) {
	rec := &recorder{}
	m := queue.NewManager(queue.NewMemoryStore(), nil,
		queue.WithNotifier(rec.notify),
		queue.WithStorageCeiling(int64(len(pngHeader))+1))

	_, err := m.Add(context.Background(), files(1))
	require.NoError(t, err)
	assert.Empty(t, rec.kinds())

	_, err = m.Add(context.Background(), files(1))
	require.NoError(t, err)
	assert.Equal(t, []queue.NoticeKind{queue.NoticeStoragePressure}, rec.kinds())
}

func TestManager_LoadDemotesProcessing(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	require.NoError(t, store.Save(ctx, []queue.Item{
		{ID: "a", Status: queue.StatusCompleted, ResultRef: "r"},
		{ID: "b", Status: queue.StatusProcessing},
		{ID: "c", Status: queue.StatusPending},
	}))

	rec := &recorder{}
	m := queue.NewManager(store, nil, queue.WithNotifier(rec.notify))
	require.NoError(t, m.Load(ctx))

	assert.Equal(t, []queue.Status{queue.StatusCompleted, queue.StatusPending, queue.StatusPending}, statuses(m.Items()))
	assert.Equal(t, []queue.NoticeKind{queue.NoticeSessionRestored}, rec.kinds())
	assertMirrored(t, m, store)
}

func TestManager_LoadEmptyStore(t *testing.T) {
	rec := &recorder{}
	m := queue.NewManager(queue.NewMemoryStore(), nil, queue.WithNotifier(rec.notify))

	require.NoError(t, m.Load(context.Background()))

	assert.Empty(t, m.Items())
	assert.Empty(t, rec.kinds())
	assert.False(t, m.HasUnsavedWork())
}

func TestManager_ProcessCompletesInOrder(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	var seen []string
	sub := submitFunc(func(_ context.Context, item queue.Item, opts queue.Options) (string, error) {
		assert.Equal(t, "enhance", opts.Mode)
		seen = append(seen, item.ID)
		return "https://cdn.example/" + item.ID, nil
	})
	m := queue.NewManager(store, sub)
	added, err := m.Add(ctx, files(3))
	require.NoError(t, err)

	sum, err := m.Process(ctx, queue.Options{Mode: "enhance"})

	require.NoError(t, err)
	assert.Equal(t, queue.Summary{Completed: 3}, sum)
	assert.Equal(t, []string{added[0].ID, added[1].ID, added[2].ID}, seen)
	for _, it := range m.Items() {
		assert.Equal(t, queue.StatusCompleted, it.Status)
		assert.Equal(t, "https://cdn.example/"+it.ID, it.ResultRef)
	}
	assert.False(t, m.HasUnsavedWork())
	assertMirrored(t, m, store)
}

func TestManager_ProcessFailureIsPerItem(t *testing.T) {
	ctx := context.Background()
	calls := 0
	sub := submitFunc(func(context.Context, queue.Item, queue.Options) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("transformation service returned 502")
		}
		return "ok", nil
	})
	m := queue.NewManager(queue.NewMemoryStore(), sub)
	_, err := m.Add(ctx, files(3))
	require.NoError(t, err)

	sum, err := m.Process(ctx, queue.Options{})

	require.NoError(t, err)
	assert.Equal(t, queue.Summary{Completed: 2, Failed: 1}, sum)
	items := m.Items()
	assert.Equal(t, []queue.Status{queue.StatusCompleted, queue.StatusError, queue.StatusCompleted}, statuses(items))
	assert.Contains(t, items[1].ErrorMessage, "502")
}

func TestManager_ProcessStopsOnQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	rec := &recorder{}
	calls := 0
	sub := submitFunc(func(context.Context, queue.Item, queue.Options) (string, error) {
		calls++
		if calls == 2 {
			return "", fmt.Errorf("submit: %w", queue.ErrQuotaExceeded)
		}
		return "ok", nil
	})
	m := queue.NewManager(store, sub, queue.WithNotifier(rec.notify))
	_, err := m.Add(ctx, files(4))
	require.NoError(t, err)

	sum, err := m.Process(ctx, queue.Options{})

	assert.ErrorIs(t, err, queue.ErrQuotaExceeded)
	assert.Equal(t, 2, calls)
	assert.Equal(t, queue.Summary{Completed: 1, Remaining: 3}, sum)
	assert.Equal(t, []queue.Status{queue.StatusCompleted, queue.StatusPending, queue.StatusPending, queue.StatusPending}, statuses(m.Items()))
	assert.Equal(t, []queue.NoticeKind{queue.NoticePaywall}, rec.kinds())
	assertMirrored(t, m, store)
}

func TestManager_ProcessIsSingleFlight(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var inFlight, maxInFlight int
	var mu sync.Mutex
	sub := submitFunc(func(context.Context, queue.Item, queue.Options) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		select {
		case started <- struct{}{}:
		default:
		}
		<-release

		mu.Lock()
		inFlight--
		mu.Unlock()
		return "ok", nil
	})
	m := queue.NewManager(queue.NewMemoryStore(), sub)
	_, err := m.Add(ctx, files(2))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := m.Process(ctx, queue.Options{})
		done <- err
	}()
	<-started

	_, err = m.Process(ctx, queue.Options{})
	assert.ErrorIs(t, err, queue.ErrBusy)
	assert.True(t, m.HasUnsavedWork())

	processing := 0
	for _, it := range m.Items() {
		if it.Status == queue.StatusProcessing {
			processing++
		}
	}
	assert.Equal(t, 1, processing)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, maxInFlight)
}

func TestManager_LoadRefusedWhileProcessing(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	calls := 0
	sub := submitFunc(func(context.Context, queue.Item, queue.Options) (string, error) {
		calls++
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return "ok", nil
	})
	store := queue.NewMemoryStore()
	m := queue.NewManager(store, sub)
	_, err := m.Add(ctx, files(2))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := m.Process(ctx, queue.Options{})
		done <- err
	}()
	<-started

	assert.ErrorIs(t, m.Load(ctx), queue.ErrBusy)
	assert.Equal(t, []queue.Status{queue.StatusProcessing, queue.StatusPending}, statuses(m.Items()))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []queue.Status{queue.StatusCompleted, queue.StatusCompleted}, statuses(m.Items()))

	require.NoError(t, m.Load(ctx))
	assertMirrored(t, m, store)
}

func TestManager_ReloadMidProcessRestoresPending(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()

	var persistedDuringCall []queue.Item
	var afterReload []queue.Item
	var restored []queue.Notice
	calls := 0
	sub := submitFunc(func(context.Context, queue.Item, queue.Options) (string, error) {
		calls++
		if calls > 1 {
			return "ok", nil
		}

		persistedDuringCall, _ = store.Load(ctx)

		// A new session starts from the persisted queue while the first
		// submission is still in flight.
		reloaded := queue.NewManager(store, nil, queue.WithNotifier(func(n queue.Notice) {
			restored = append(restored, n)
		}))
		require.NoError(t, reloaded.Load(ctx))
		afterReload = reloaded.Items()
		return "ok", nil
	})

	m := queue.NewManager(store, sub)
	_, err := m.Add(ctx, files(3))
	require.NoError(t, err)

	_, err = m.Process(ctx, queue.Options{})
	require.NoError(t, err)

	assert.Equal(t, []queue.Status{queue.StatusProcessing, queue.StatusPending, queue.StatusPending}, statuses(persistedDuringCall))
	assert.Equal(t, []queue.Status{queue.StatusPending, queue.StatusPending, queue.StatusPending}, statuses(afterReload))
	require.Len(t, restored, 1)
	assert.Equal(t, queue.NoticeSessionRestored, restored[0].Kind)
	assert.Equal(t, 1, restored[0].Count)
}

func TestManager_CancelledSubmissionReturnsToPending(t *testing.T) {
	store := queue.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := submitFunc(func(ctx context.Context, _ queue.Item, _ queue.Options) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	m := queue.NewManager(store, sub)
	_, err := m.Add(context.Background(), files(2))
	require.NoError(t, err)

	sum, err := m.Process(ctx, queue.Options{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, sum.Remaining)
	assert.Equal(t, []queue.Status{queue.StatusPending, queue.StatusPending}, statuses(m.Items()))
	assertMirrored(t, m, store)
}

func TestManager_RetryAfterError(t *testing.T) {
	ctx := context.Background()
	fail := true
	sub := submitFunc(func(context.Context, queue.Item, queue.Options) (string, error) {
		if fail {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	m := queue.NewManager(queue.NewMemoryStore(), sub)
	_, err := m.Add(ctx, files(1))
	require.NoError(t, err)

	_, err = m.Process(ctx, queue.Options{})
	require.NoError(t, err)
	assert.Equal(t, queue.StatusError, m.Items()[0].Status)
	assert.False(t, m.HasUnsavedWork())

	// Errored items are not picked up again.
	fail = false
	sum, err := m.Process(ctx, queue.Options{})
	require.NoError(t, err)
	assert.Equal(t, queue.Summary{}, sum)
}
