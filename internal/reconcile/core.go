// Package reconcile merges polled snapshots with pushed events into one view.
//
// The Core owns the live signal buffer and the live performance value. Envelopes
// are applied one at a time in arrival order; views are copied out on demand and
// carry the derived P&L curve and ticker universe computed from current inputs.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/sentimentedge/internal/analytics"
	"github.com/aristath/sentimentedge/internal/clients/push"
	"github.com/aristath/sentimentedge/internal/domain"
	"github.com/aristath/sentimentedge/internal/events"
	"github.com/aristath/sentimentedge/internal/metrics"
	"github.com/aristath/sentimentedge/internal/queries"
)

const defaultInboxSize = 64

// Source is a cached resource the core reads and can ask to refresh
type Source[T any] interface {
	Snapshot() queries.Snapshot[T]
	Refetch()
	OnUpdate(func(T))
}

// Channel reports push connection state
type Channel interface {
	Status() push.Status
	LastError() error
	Attempt() int
}

// Sources are the polled resources the core reconciles against.
// Sentiment is optional.
type Sources struct {
	Positions   Source[[]domain.Position]
	Trades      Source[[]domain.Trade]
	Performance Source[domain.Performance]
	Sentiment   Source[queries.SentimentSeries]
}

// Options tunes the core
type Options struct {
	BufferSize     int
	FeedSize       int
	DefaultTickers []string
	TickerLimit    int
	InboxSize      int
}

// Core is the reconciliation core
type Core struct {
	src     Sources
	opts    Options
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu      sync.RWMutex
	buffer  *SignalBuffer
	live    *domain.Performance
	liveAt  time.Time
	channel Channel
	closed  bool

	inbox     chan events.Envelope
	done      chan struct{}
	closeOnce sync.Once

	now func() time.Time
}

// New creates a core over src and subscribes to polled performance updates
func New(src Sources, opts Options, m *metrics.Metrics, log zerolog.Logger) *Core {
	if opts.FeedSize <= 0 {
		opts.FeedSize = 15
	}
	if opts.TickerLimit <= 0 {
		opts.TickerLimit = analytics.DefaultTickerCap
	}
	if opts.DefaultTickers == nil {
		opts.DefaultTickers = analytics.DefaultTickers
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}

	c := &Core{
		src:     src,
		opts:    opts,
		metrics: m,
		log:     log.With().Str("component", "reconcile").Logger(),
		buffer:  NewSignalBuffer(opts.BufferSize),
		inbox:   make(chan events.Envelope, opts.InboxSize),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	// a completed poll supersedes any live value
	src.Performance.OnUpdate(func(domain.Performance) {
		c.mu.Lock()
		hadLive := c.live != nil
		c.live = nil
		c.liveAt = time.Time{}
		c.mu.Unlock()
		if hadLive {
			c.log.Debug().Msg("Polled performance superseded live value")
		}
	})

	return c
}

// AttachChannel sets the push channel reported in views
func (c *Core) AttachChannel(ch Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channel = ch
}

// Enqueue hands an envelope to the Run loop. It is the push client's handler.
func (c *Core) Enqueue(env events.Envelope) {
	select {
	case c.inbox <- env:
	case <-c.done:
	}
}

// Run applies queued envelopes in arrival order until ctx is done or Close is called.
// Ending ctx closes the core, so Enqueue never blocks once nothing drains the inbox.
func (c *Core) Run(ctx context.Context) {
	c.log.Info().Msg("Reconciliation loop started")
	defer c.log.Info().Msg("Reconciliation loop stopped")

	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-c.done:
			return
		case env := <-c.inbox:
			c.Handle(env)
		}
	}
}

// Handle applies one envelope synchronously
func (c *Core) Handle(env events.Envelope) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	switch env.Type {
	case events.TypeSignal:
		sig, ok := env.Signal()
		if !ok {
			c.drop(env, "signal envelope without payload")
			return
		}
		if sig.ID == "" {
			sig.ID = uuid.NewString()
		}

		c.mu.Lock()
		c.buffer.Push(sig)
		n := c.buffer.Len()
		c.mu.Unlock()

		c.metrics.SetSignalBuffer(n)
		c.log.Info().
			Str("ticker", sig.Ticker).
			Str("action", string(sig.Action)).
			Float64("sentiment", sig.Sentiment).
			Msg("Signal received")

		c.src.Positions.Refetch()
		c.src.Trades.Refetch()

	case events.TypePerformance:
		perf, ok := env.Performance()
		if !ok {
			c.drop(env, "performance envelope without payload")
			return
		}

		c.mu.Lock()
		c.live = &perf
		c.liveAt = c.now()
		c.mu.Unlock()

		c.log.Debug().Float64("total_pnl", perf.TotalPnL).Msg("Live performance applied")

	case events.TypePositionUpdate:
		c.src.Positions.Refetch()

	default:
		c.drop(env, "unknown envelope type")
		return
	}

	c.metrics.ObserveEnvelope(string(env.Type), "handled")
}

func (c *Core) drop(env events.Envelope, reason string) {
	c.log.Warn().Str("type", string(env.Type)).Msg("Dropping envelope: " + reason)
	c.metrics.ObserveEnvelope(string(env.Type), "dropped")
}

// Refresh asks every source for a new fetch
func (c *Core) Refresh() {
	c.src.Positions.Refetch()
	c.src.Trades.Refetch()
	c.src.Performance.Refetch()
	if c.src.Sentiment != nil {
		c.src.Sentiment.Refetch()
	}
}

// Signals returns up to limit buffered signals, newest first; limit <= 0 returns all
func (c *Core) Signals(limit int) []domain.Signal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := c.buffer.Snapshot()
	if limit <= 0 {
		return all
	}
	return analytics.FeedWindow(all, limit)
}

// View builds a fresh read-only snapshot of the reconciled state
func (c *Core) View() View {
	now := c.now()

	positions := c.src.Positions.Snapshot()
	trades := c.src.Trades.Snapshot()
	polled := c.src.Performance.Snapshot()

	c.mu.RLock()
	signals := c.buffer.Snapshot()
	var live *domain.Performance
	if c.live != nil {
		p := *c.live
		live = &p
	}
	channel := c.channel
	c.mu.RUnlock()

	v := View{
		GeneratedAt:   now,
		Connection:    connectionOf(channel),
		Positions:     copyOf(positions.Value),
		Trades:        copyOf(trades.Value),
		Signals:       signals,
		Feed:          analytics.FeedWindow(signals, c.opts.FeedSize),
		CumulativePnL: analytics.CumulativePnL(trades.Value),
		ActiveTickers: analytics.ActiveTickers(positions.Value, trades.Value, c.opts.DefaultTickers, c.opts.TickerLimit),
		Freshness: map[string]Freshness{
			queries.ResourcePositions:   freshnessOf(positions, now),
			queries.ResourceTrades:      freshnessOf(trades, now),
			queries.ResourcePerformance: freshnessOf(polled, now),
		},
	}

	switch {
	case live != nil:
		v.Performance = live
		v.PerformanceSource = PerformanceLive
	case polled.Ready:
		p := polled.Value
		v.Performance = &p
		v.PerformanceSource = PerformancePolled
	default:
		v.PerformanceSource = PerformanceNone
	}

	if c.src.Sentiment != nil {
		s := c.src.Sentiment.Snapshot()
		v.Freshness[queries.ResourceSentiment] = freshnessOf(s, now)
		if s.Ready {
			series := s.Value
			series.Points = copyOf(series.Points)
			summary := analytics.SummarizeSentiment(series.Points)
			v.Sentiment = &series
			v.SentimentSummary = &summary
		}
	}

	return v
}

// Close stops Run and ignores envelopes handled afterwards
func (c *Core) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

func connectionOf(ch Channel) Connection {
	if ch == nil {
		return Connection{Status: push.StatusIdle.String()}
	}
	conn := Connection{
		Status:  ch.Status().String(),
		Attempt: ch.Attempt(),
	}
	if err := ch.LastError(); err != nil {
		conn.Error = err.Error()
	}
	return conn
}

func copyOf[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
