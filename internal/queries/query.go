// Package queries keeps the last good copy of each backend resource and refreshes it
// on demand or on a schedule. A failed fetch never clears data that was already loaded.
package queries

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentimentedge/internal/metrics"
)

const defaultFetchTimeout = 10 * time.Second

// ErrClosed is returned by Fetch once the query has been closed
var ErrClosed = errors.New("query closed")

// FetchFunc loads one resource
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is a read-only copy of a query's state
type Snapshot[T any] struct {
	Value     T
	Ready     bool // at least one fetch succeeded
	UpdatedAt time.Time
	Err       error // last failure, cleared by the next success
	ErrAt     time.Time
	Fetching  bool
}

// Age is the time since the last successful fetch, or zero when nothing has loaded yet.
func (s Snapshot[T]) Age(now time.Time) time.Duration {
	if !s.Ready {
		return 0
	}
	return now.Sub(s.UpdatedAt)
}

// Options tunes a query
type Options[T any] struct {
	Timeout time.Duration
	// Accept, when set, discards results it rejects without touching the snapshot
	Accept func(T) bool
}

// Query is a cached, refreshable resource
type Query[T any] struct {
	name    string
	fetch   FetchFunc[T]
	opts    Options[T]
	metrics *metrics.Metrics
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	snap      Snapshot[T]
	inflight  int
	closed    bool
	listeners []func(T)

	now func() time.Time
}

// New creates a query named after the resource it loads
func New[T any](name string, fetch FetchFunc[T], opts Options[T], m *metrics.Metrics, log zerolog.Logger) *Query[T] {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Query[T]{
		name:    name,
		fetch:   fetch,
		opts:    opts,
		metrics: m,
		log:     log.With().Str("component", "query").Str("resource", name).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Name implements scheduler.Job
func (q *Query[T]) Name() string {
	return q.name
}

// Run implements scheduler.Job
func (q *Query[T]) Run() error {
	ctx, cancel := context.WithTimeout(q.ctx, q.opts.Timeout)
	defer cancel()
	return q.Fetch(ctx)
}

// Refetch starts a background fetch. It never cancels one already in flight.
func (q *Query[T]) Refetch() {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return
	}

	go func() {
		if err := q.Run(); err != nil && !errors.Is(err, ErrClosed) {
			q.log.Debug().Err(err).Msg("Refetch failed")
		}
	}()
}

// Fetch loads the resource synchronously and stores the result.
// On failure the previous value is kept and the error recorded.
func (q *Query[T]) Fetch(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.inflight++
	q.snap.Fetching = true
	q.mu.Unlock()

	start := q.now()
	value, err := q.fetch(ctx)
	q.metrics.ObserveFetch(q.name, q.now().Sub(start), err)

	q.mu.Lock()
	q.inflight--
	q.snap.Fetching = q.inflight > 0
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}

	if err != nil {
		q.snap.Err = err
		q.snap.ErrAt = q.now()
		q.mu.Unlock()
		q.log.Warn().Err(err).Msg("Fetch failed, keeping previous data")
		return err
	}

	if q.opts.Accept != nil && !q.opts.Accept(value) {
		q.mu.Unlock()
		q.log.Debug().Msg("Discarding superseded result")
		return nil
	}

	q.snap.Value = value
	q.snap.Ready = true
	q.snap.UpdatedAt = q.now()
	q.snap.Err = nil
	q.snap.ErrAt = time.Time{}
	listeners := append([]func(T){}, q.listeners...)
	q.mu.Unlock()

	for _, l := range listeners {
		l(value)
	}
	return nil
}

// Snapshot returns a copy of the current state
func (q *Query[T]) Snapshot() Snapshot[T] {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.snap
}

// OnUpdate registers fn to run after every successful write
func (q *Query[T]) OnUpdate(fn func(T)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, fn)
}

// Close cancels in-flight fetches and discards any result that still arrives.
func (q *Query[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.listeners = nil
	q.mu.Unlock()
	q.cancel()
}
