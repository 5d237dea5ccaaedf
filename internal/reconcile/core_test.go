package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentimentedge/internal/clients/push"
	"github.com/aristath/sentimentedge/internal/domain"
	"github.com/aristath/sentimentedge/internal/events"
	"github.com/aristath/sentimentedge/internal/queries"
)

// fakeSource counts refetches and lets tests drive snapshots and updates.
type fakeSource[T any] struct {
	mu        sync.Mutex
	snap      queries.Snapshot[T]
	refetches int
	listeners []func(T)
}

func (f *fakeSource[T]) Snapshot() queries.Snapshot[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource[T]) Refetch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refetches++
}

func (f *fakeSource[T]) OnUpdate(fn func(T)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

func (f *fakeSource[T]) Refetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refetches
}

// publish simulates a completed poll
func (f *fakeSource[T]) publish(v T) {
	f.mu.Lock()
	f.snap = queries.Snapshot[T]{Value: v, Ready: true, UpdatedAt: time.Now()}
	listeners := append([]func(T){}, f.listeners...)
	f.mu.Unlock()
	for _, l := range listeners {
		l(v)
	}
}

type fixture struct {
	positions   *fakeSource[[]domain.Position]
	trades      *fakeSource[[]domain.Trade]
	performance *fakeSource[domain.Performance]
	sentiment   *fakeSource[queries.SentimentSeries]
	core        *Core
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		positions:   &fakeSource[[]domain.Position]{},
		trades:      &fakeSource[[]domain.Trade]{},
		performance: &fakeSource[domain.Performance]{},
		sentiment:   &fakeSource[queries.SentimentSeries]{},
	}
	f.core = New(Sources{
		Positions:   f.positions,
		Trades:      f.trades,
		Performance: f.performance,
		Sentiment:   f.sentiment,
	}, opts, nil, zerolog.Nop())
	return f
}

func signalEnvelope(ticker string) events.Envelope {
	return events.Envelope{
		Type: events.TypeSignal,
		Data: &events.SignalData{Signal: domain.Signal{
			Ticker:       ticker,
			Action:       domain.SideBuy,
			Timestamp:    time.Now(),
			Sentiment:    0.7,
			MentionCount: 100,
		}},
	}
}

func performanceEnvelope(total float64) events.Envelope {
	return events.Envelope{
		Type: events.TypePerformance,
		Data: &events.PerformanceData{Performance: domain.Performance{TotalPnL: total}},
	}
}

func tickers(signals []domain.Signal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.Ticker
	}
	return out
}

func TestSignalBuffer_EvictsOldest(t *testing.T) {
	b := NewSignalBuffer(3)
	for _, tk := range []string{"S1", "S2", "S3", "S4"} {
		b.Push(domain.Signal{Ticker: tk})
	}

	assert.Equal(t, []string{"S4", "S3", "S2"}, tickers(b.Snapshot()))
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 3, b.Cap())
}

func TestSignalBuffer_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultBufferSize, NewSignalBuffer(0).Cap())
	assert.Equal(t, DefaultBufferSize, NewSignalBuffer(-5).Cap())
}

func TestSignalBuffer_SnapshotIsACopy(t *testing.T) {
	b := NewSignalBuffer(2)
	b.Push(domain.Signal{Ticker: "GME"})

	snap := b.Snapshot()
	snap[0].Ticker = "AMC"
	assert.Equal(t, "GME", b.Snapshot()[0].Ticker)
}

func TestCore_SignalPrependsAndRefetchesOnce(t *testing.T) {
	f := newFixture(Options{BufferSize: 10})

	f.core.Handle(signalEnvelope("GME"))

	assert.Len(t, f.core.Signals(0), 1)
	assert.Equal(t, 1, f.positions.Refetches())
	assert.Equal(t, 1, f.trades.Refetches())
	assert.Equal(t, 0, f.performance.Refetches())

	f.core.Handle(signalEnvelope("AMC"))
	assert.Equal(t, []string{"AMC", "GME"}, tickers(f.core.Signals(0)))
	assert.Equal(t, 2, f.positions.Refetches())
	assert.Equal(t, 2, f.trades.Refetches())
}

func TestCore_SignalAssignsID(t *testing.T) {
	f := newFixture(Options{})

	f.core.Handle(signalEnvelope("GME"))
	env := signalEnvelope("AMC")
	env.Data.(*events.SignalData).ID = "server-id"
	f.core.Handle(env)

	signals := f.core.Signals(0)
	assert.Equal(t, "server-id", signals[0].ID)
	assert.NotEmpty(t, signals[1].ID)
	assert.NotEqual(t, signals[0].ID, signals[1].ID)
}

func TestCore_CapacityThree(t *testing.T) {
	f := newFixture(Options{BufferSize: 3})

	for _, tk := range []string{"S1", "S2", "S3", "S4"} {
		f.core.Handle(signalEnvelope(tk))
	}

	assert.Equal(t, []string{"S4", "S3", "S2"}, tickers(f.core.Signals(0)))
	assert.Equal(t, []string{"S4", "S3"}, tickers(f.core.Signals(2)))
}

func TestCore_PositionUpdateRefetchesPositionsOnly(t *testing.T) {
	f := newFixture(Options{})

	f.core.Handle(events.Envelope{
		Type: events.TypePositionUpdate,
		Data: &events.PositionUpdateData{Position: domain.Position{Ticker: "GME"}},
	})

	assert.Equal(t, 1, f.positions.Refetches())
	assert.Equal(t, 0, f.trades.Refetches())
	assert.Empty(t, f.core.Signals(0))
}

func TestCore_LivePerformanceUntilNextPoll(t *testing.T) {
	f := newFixture(Options{})

	assert.Equal(t, PerformanceNone, f.core.View().PerformanceSource)
	assert.Nil(t, f.core.View().Performance)

	f.performance.publish(domain.Performance{TotalPnL: 100})
	v := f.core.View()
	assert.Equal(t, PerformancePolled, v.PerformanceSource)
	assert.Equal(t, 100.0, v.Performance.TotalPnL)

	f.core.Handle(performanceEnvelope(150))
	v = f.core.View()
	assert.Equal(t, PerformanceLive, v.PerformanceSource)
	assert.Equal(t, 150.0, v.Performance.TotalPnL)

	f.performance.publish(domain.Performance{TotalPnL: 160})
	v = f.core.View()
	assert.Equal(t, PerformancePolled, v.PerformanceSource)
	assert.Equal(t, 160.0, v.Performance.TotalPnL)
}

func TestCore_LivePerformanceBeforeFirstPoll(t *testing.T) {
	f := newFixture(Options{})

	f.core.Handle(performanceEnvelope(-20))
	v := f.core.View()
	assert.Equal(t, PerformanceLive, v.PerformanceSource)
	assert.Equal(t, -20.0, v.Performance.TotalPnL)
}

func TestCore_DropsMalformedEnvelopes(t *testing.T) {
	f := newFixture(Options{})

	assert.NotPanics(t, func() {
		f.core.Handle(events.Envelope{Type: "bogus"})
		f.core.Handle(events.Envelope{Type: events.TypeSignal})
		f.core.Handle(events.Envelope{Type: events.TypePerformance})
	})

	assert.Empty(t, f.core.Signals(0))
	assert.Equal(t, 0, f.positions.Refetches())
	assert.Equal(t, PerformanceNone, f.core.View().PerformanceSource)
}

func TestCore_RunProcessesInArrivalOrder(t *testing.T) {
	f := newFixture(Options{BufferSize: 100})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		f.core.Run(ctx)
		close(done)
	}()

	want := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		tk := fmt.Sprintf("T%02d", i)
		want = append([]string{tk}, want...)
		f.core.Enqueue(signalEnvelope(tk))
	}

	require.Eventually(t, func() bool { return len(f.core.Signals(0)) == 20 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, tickers(f.core.Signals(0)))

	f.core.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after Close")
	}
}

func TestCore_RunCancelledClosesCore(t *testing.T) {
	f := newFixture(Options{InboxSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.core.Run(ctx)

	enqueued := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			f.core.Enqueue(signalEnvelope("GME"))
		}
		close(enqueued)
	}()

	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked after Run stopped")
	}
	assert.Empty(t, f.core.Signals(0))
}

func TestCore_CloseIgnoresLaterEnvelopes(t *testing.T) {
	f := newFixture(Options{InboxSize: 1})
	f.core.Close()
	f.core.Close()

	f.core.Handle(signalEnvelope("GME"))
	// inbox is full and nobody drains it: Enqueue must not block after Close
	f.core.Enqueue(signalEnvelope("AMC"))
	f.core.Enqueue(signalEnvelope("AMC"))

	assert.Empty(t, f.core.Signals(0))
	assert.Equal(t, 0, f.positions.Refetches())
}

func TestCore_Refresh(t *testing.T) {
	f := newFixture(Options{})
	f.core.Refresh()

	assert.Equal(t, 1, f.positions.Refetches())
	assert.Equal(t, 1, f.trades.Refetches())
	assert.Equal(t, 1, f.performance.Refetches())
	assert.Equal(t, 1, f.sentiment.Refetches())
}

func TestCore_RefreshCompletionReplacesLivePerformance(t *testing.T) {
	f := newFixture(Options{})
	f.core.Handle(performanceEnvelope(150))
	require.Equal(t, PerformanceLive, f.core.View().PerformanceSource)

	f.core.Refresh()
	assert.Equal(t, PerformanceLive, f.core.View().PerformanceSource, "live value holds until the fetch completes")

	f.performance.publish(domain.Performance{TotalPnL: 90})
	v := f.core.View()
	assert.Equal(t, PerformancePolled, v.PerformanceSource)
	assert.Equal(t, 90.0, v.Performance.TotalPnL)
}

type fakeChannel struct {
	status  push.Status
	attempt int
	err     error
}

func (c fakeChannel) Status() push.Status { return c.status }
func (c fakeChannel) LastError() error    { return c.err }
func (c fakeChannel) Attempt() int        { return c.attempt }

func TestCore_ViewDerivations(t *testing.T) {
	f := newFixture(Options{FeedSize: 2, DefaultTickers: []string{"AAPL", "TSLA", "GME"}, TickerLimit: 10})
	f.core.AttachChannel(fakeChannel{status: push.StatusFailed, attempt: 10, err: errors.New("gave up")})

	pnl := 12.5
	f.positions.publish([]domain.Position{{ID: 1, Ticker: "NVDA", Quantity: 3}})
	f.trades.publish([]domain.Trade{
		{ID: 2, Ticker: "AMC", Side: domain.SideSell, Timestamp: time.Now(), RealizedPnL: &pnl},
		{ID: 1, Ticker: "AMC", Side: domain.SideBuy, Timestamp: time.Now().Add(-time.Hour)},
	})
	f.sentiment.publish(queries.SentimentSeries{
		Selection: queries.SentimentSelection{Ticker: "NVDA", Window: domain.Window5m},
		Points:    []domain.SentimentPoint{{Ticker: "NVDA", WeightedSentiment: 0.4, MentionCount: 9}},
	})
	for _, tk := range []string{"S1", "S2", "S3"} {
		f.core.Handle(signalEnvelope(tk))
	}

	v := f.core.View()

	assert.Equal(t, "failed", v.Connection.Status)
	assert.Equal(t, 10, v.Connection.Attempt)
	assert.Equal(t, "gave up", v.Connection.Error)

	assert.Equal(t, []string{"NVDA", "AMC", "AAPL", "TSLA", "GME"}, v.ActiveTickers)
	require.Len(t, v.CumulativePnL, 1)
	assert.Equal(t, 12.5, v.CumulativePnL[0].Total)
	assert.Equal(t, []string{"S3", "S2"}, tickers(v.Feed))
	assert.Len(t, v.Signals, 3)

	require.NotNil(t, v.Sentiment)
	assert.Equal(t, "NVDA", v.Sentiment.Selection.Ticker)
	require.NotNil(t, v.SentimentSummary)
	assert.Equal(t, 9, v.SentimentSummary.TotalMentions)

	for _, name := range []string{"positions", "trades", "sentiment"} {
		assert.True(t, v.Freshness[name].Ready, name)
	}
	assert.False(t, v.Freshness["performance"].Ready)

	// views are copies
	v.Positions[0].Ticker = "XXX"
	assert.Equal(t, "NVDA", f.core.View().Positions[0].Ticker)
}

func TestCore_ViewWithoutChannel(t *testing.T) {
	f := newFixture(Options{})
	v := f.core.View()

	assert.Equal(t, "idle", v.Connection.Status)
	assert.Empty(t, v.Positions)
	assert.NotNil(t, v.Positions)
	assert.Equal(t, []string{"AAPL", "TSLA", "GME"}, v.ActiveTickers)
	assert.Nil(t, v.Sentiment)
}

func TestCore_ViewReportsFetchErrors(t *testing.T) {
	f := newFixture(Options{})
	f.trades.mu.Lock()
	f.trades.snap = queries.Snapshot[[]domain.Trade]{Err: errors.New("timeout"), ErrAt: time.Now()}
	f.trades.mu.Unlock()

	v := f.core.View()
	assert.Equal(t, "timeout", v.Freshness["trades"].Error)
	assert.False(t, v.Freshness["trades"].Ready)
}
