package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"image-studio-backend/internal/metrics"
)

var errDropped = errors.New("usage report dropped")

// AsyncReporter queues usage reports and sends them from a background worker.
// Enqueue never blocks and never fails.
type AsyncReporter struct {
	next     Reporter
	log      *logrus.Entry
	timeout  time.Duration
	backoffs []time.Duration

	mu     sync.Mutex
	closed bool
	jobs   chan Usage
	wg     sync.WaitGroup
}

type AsyncOption func(*AsyncReporter)

// WithBackoffs sets the waits between attempts; len(backoffs)+1 attempts are made.
func WithBackoffs(backoffs ...time.Duration) AsyncOption {
	return func(a *AsyncReporter) { a.backoffs = backoffs }
}

func WithTimeout(d time.Duration) AsyncOption {
	return func(a *AsyncReporter) { a.timeout = d }
}

func NewAsyncReporter(next Reporter, log *logrus.Entry, buffer int, opts ...AsyncOption) *AsyncReporter {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncReporter{
		next:     next,
		log:      log,
		timeout:  10 * time.Second,
		backoffs: []time.Duration{500 * time.Millisecond, 2 * time.Second},
		jobs:     make(chan Usage, buffer),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.wg.Add(1)
	go a.run()
	return a
}

func (a *AsyncReporter) Enqueue(u Usage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		a.logDropped(u, "reporter closed")
		return
	}

	select {
	case a.jobs <- u:
	default:
		a.logDropped(u, "report queue full")
	}
}

// Close stops accepting reports and waits for queued ones to finish.
func (a *AsyncReporter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.jobs)
	a.mu.Unlock()

	a.wg.Wait()
}

func (a *AsyncReporter) run() {
	defer a.wg.Done()
	for u := range a.jobs {
		a.send(u)
	}
}

func (a *AsyncReporter) send(u Usage) {
	var err error
	for attempt := 0; attempt <= len(a.backoffs); attempt++ {
		if attempt > 0 {
			time.Sleep(a.backoffs[attempt-1])
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err = a.next.Report(ctx, u)
		cancel()
		if err == nil {
			break
		}
	}

	metrics.RecordBillingReport(err)
	if err != nil {
		a.log.WithFields(logrus.Fields{
			"account_id": u.AccountID,
			"meter_item": u.MeterHandle,
			"sequence":   u.Sequence,
		}).WithError(err).Error("metered usage report failed")
	}
}

func (a *AsyncReporter) logDropped(u Usage, reason string) {
	metrics.RecordBillingReport(errDropped)
	a.log.WithFields(logrus.Fields{
		"account_id": u.AccountID,
		"meter_item": u.MeterHandle,
		"sequence":   u.Sequence,
	}).Error("metered usage report dropped: " + reason)
}
