package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Submitter sends one item to the submission endpoint and returns the result
// reference. Quota refusals must satisfy errors.Is(err, ErrQuotaExceeded).
type Submitter interface {
	Submit(ctx context.Context, item Item, opts Options) (string, error)
}

type Option func(*Manager)

func WithNotifier(fn func(Notice)) Option {
	return func(m *Manager) { m.notify = fn }
}

func WithPreviewer(p Previewer) Option {
	return func(m *Manager) { m.preview = p }
}

func WithStorageCeiling(bytes int64) Option {
	return func(m *Manager) { m.ceiling = bytes }
}

func WithLogger(log *logrus.Entry) Option {
	return func(m *Manager) { m.log = log }
}

// Manager owns the in-memory queue and mirrors it to its Store after every
// mutation. At most one item is Processing at a time.
type Manager struct {
	store     Store
	submitter Submitter
	notify    func(Notice)
	preview   Previewer
	ceiling   int64
	log       *logrus.Entry

	mu         sync.Mutex
	items      []Item
	processing bool
}

func NewManager(store Store, submitter Submitter, opts ...Option) *Manager {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	m := &Manager{
		store:     store,
		submitter: submitter,
		notify:    func(Notice) {},
		preview:   DefaultPreview,
		ceiling:   DefaultStorageCeiling,
		log:       logrus.NewEntry(logger),
		items:     []Item{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the in-memory queue with the persisted one. Items left
// Processing by a previous session are demoted to Pending. It returns ErrBusy
// while Process is running, since the in-flight item would be demoted too.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processing {
		return ErrBusy
	}

	items, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}

	restored := 0
	for i := range items {
		if items[i].Status == StatusProcessing {
			items[i].Status = StatusPending
			restored++
		}
	}
	m.items = items

	if restored > 0 {
		if err := m.store.Save(ctx, m.items); err != nil {
			return fmt.Errorf("persist restored queue: %w", err)
		}
		m.log.WithField("restored", restored).Info("interrupted items returned to pending")
		m.notify(Notice{
			Kind:    NoticeSessionRestored,
			Message: fmt.Sprintf("%d interrupted item(s) were restored and will be retried", restored),
			Count:   restored,
		})
	}
	return nil
}

// Add appends files as Pending items. The batch is accepted or rejected as a
// whole.
func (m *Manager) Add(ctx context.Context, files []File) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items)+len(files) > MaxItems {
		return nil, fmt.Errorf("%w: %d queued, %d offered, limit %d", ErrQueueFull, len(m.items), len(files), MaxItems)
	}

	added := make([]Item, 0, len(files))
	for _, f := range files {
		contentType := f.ContentType
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = mimetype.Detect(f.Data).String()
		}
		if !strings.HasPrefix(contentType, "image/") {
			return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedType, f.Name, contentType)
		}

		added = append(added, Item{
			ID:          uuid.NewString(),
			Name:        f.Name,
			Payload:     f.Data,
			ContentType: contentType,
			PreviewURI:  m.preview(f, contentType),
			Status:      StatusPending,
		})
	}

	next := append(cloneItems(m.items), added...)
	if err := m.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("persist queue: %w", err)
	}
	m.items = next

	if total := payloadBytes(m.items); m.ceiling > 0 && total > m.ceiling {
		m.notify(Notice{
			Kind:    NoticeStoragePressure,
			Message: fmt.Sprintf("queued images use %d MiB; process or remove items to free space", total>>20),
			Bytes:   total,
		})
	}
	return added, nil
}

func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := cloneItems(m.items)
	next = append(next[:idx], next[idx+1:]...)
	if err := m.store.Save(ctx, next); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	m.items = next
	return nil
}

// Clear empties the queue and discards the persisted key.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	m.items = []Item{}
	return nil
}

func (m *Manager) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneItems(m.items)
}

// HasUnsavedWork reports whether leaving now would abandon work: an item is
// still Pending or a Process run is underway.
func (m *Manager) HasUnsavedWork() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processing {
		return true
	}
	for _, it := range m.items {
		if it.Status == StatusPending {
			return true
		}
	}
	return false
}

// Process submits every Pending item in insertion order, one at a time.
//
// A quota refusal stops the run: the item goes back to Pending, the paywall
// notice fires and ErrQuotaExceeded is returned. Any other submission failure
// marks only that item as Error. Cancelling ctx stops the run before the
// next item; an in-flight submission that fails because of the cancellation
// is returned to Pending.
func (m *Manager) Process(ctx context.Context, opts Options) (Summary, error) {
	m.mu.Lock()
	if m.processing {
		m.mu.Unlock()
		return Summary{}, ErrBusy
	}
	m.processing = true
	ids := m.pendingIDs()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.processing = false
		m.mu.Unlock()
	}()

	var sum Summary
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			sum.Remaining = m.countPending()
			return sum, err
		}

		item, ok, err := m.begin(ctx, id)
		if err != nil {
			sum.Remaining = m.countPending()
			return sum, err
		}
		if !ok {
			continue
		}

		ref, subErr := m.submitter.Submit(ctx, item, opts)

		switch {
		case subErr == nil:
			sum.Completed++
			err = m.finish(ctx, id, func(it *Item) {
				it.Status = StatusCompleted
				it.ResultRef = ref
				it.ErrorMessage = ""
			})

		case errors.Is(subErr, ErrQuotaExceeded):
			if err := m.finish(ctx, id, func(it *Item) { it.Status = StatusPending }); err != nil {
				return sum, err
			}
			sum.Remaining = m.countPending()
			m.log.WithField("item_id", id).Info("quota exceeded, batch stopped")
			m.notify(Notice{Kind: NoticePaywall, Message: subErr.Error()})
			return sum, subErr

		case ctx.Err() != nil:
			if err := m.finish(ctx, id, func(it *Item) { it.Status = StatusPending }); err != nil {
				return sum, err
			}
			sum.Remaining = m.countPending()
			return sum, ctx.Err()

		default:
			sum.Failed++
			m.log.WithField("item_id", id).WithError(subErr).Warn("item failed")
			err = m.finish(ctx, id, func(it *Item) {
				it.Status = StatusError
				it.ErrorMessage = subErr.Error()
			})
		}

		if err != nil {
			sum.Remaining = m.countPending()
			return sum, err
		}
	}

	sum.Remaining = m.countPending()
	return sum, nil
}

// begin marks id Processing and persists it. ok is false when the item was
// removed or changed state since the run started.
func (m *Manager) begin(ctx context.Context, id string) (Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 || m.items[idx].Status != StatusPending {
		return Item{}, false, nil
	}

	m.items[idx].Status = StatusProcessing
	if err := m.store.Save(ctx, m.items); err != nil {
		m.items[idx].Status = StatusPending
		return Item{}, false, fmt.Errorf("persist queue: %w", err)
	}
	return m.items[idx], true, nil
}

// finish applies update to id and persists. A result for an item removed
// mid-flight is dropped.
func (m *Manager) finish(ctx context.Context, id string, update func(*Item)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return nil
	}

	update(&m.items[idx])
	if err := m.store.Save(context.WithoutCancel(ctx), m.items); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}

func (m *Manager) indexOf(id string) int {
	for i, it := range m.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) pendingIDs() []string {
	var ids []string
	for _, it := range m.items {
		if it.Status == StatusPending {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func (m *Manager) countPending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pendingIDs())
}

func payloadBytes(items []Item) int64 {
	var n int64
	for _, it := range items {
		n += int64(len(it.Payload))
	}
	return n
}
