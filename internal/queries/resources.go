package queries

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentimentedge/internal/clients/monitorapi"
	"github.com/aristath/sentimentedge/internal/domain"
	"github.com/aristath/sentimentedge/internal/metrics"
	"github.com/aristath/sentimentedge/internal/scheduler"
)

// Resource names, used as job names and metric labels
const (
	ResourcePositions   = "positions"
	ResourceTrades      = "trades"
	ResourcePerformance = "performance"
	ResourceSentiment   = "sentiment"
)

// Backend is the slice of the REST client the queries need
type Backend interface {
	Positions(ctx context.Context) ([]domain.Position, error)
	Trades(ctx context.Context, q monitorapi.TradeQuery) ([]domain.Trade, error)
	Performance(ctx context.Context) (domain.Performance, error)
	Sentiment(ctx context.Context, ticker string, window domain.Window, limit int) ([]domain.SentimentPoint, error)
}

// SentimentSelection picks the series the sentiment query loads
type SentimentSelection struct {
	Ticker string        `json:"ticker"`
	Window domain.Window `json:"window"`
	Limit  int           `json:"limit"`
}

// SentimentSeries is a loaded series tagged with the selection it was fetched for
type SentimentSeries struct {
	Selection SentimentSelection      `json:"selection"`
	Points    []domain.SentimentPoint `json:"points"`
}

// SentimentQuery is a Query whose parameters can change at runtime.
// Results fetched for an older selection are discarded.
type SentimentQuery struct {
	*Query[SentimentSeries]

	selMu sync.RWMutex
	sel   SentimentSelection
}

// NewSentiment creates the sentiment query
func NewSentiment(backend Backend, initial SentimentSelection, timeout time.Duration, m *metrics.Metrics, log zerolog.Logger) *SentimentQuery {
	sq := &SentimentQuery{sel: initial}
	fetch := func(ctx context.Context) (SentimentSeries, error) {
		sel := sq.Selection()
		if sel.Ticker == "" {
			return SentimentSeries{Selection: sel}, nil
		}
		points, err := backend.Sentiment(ctx, sel.Ticker, sel.Window, sel.Limit)
		if err != nil {
			return SentimentSeries{}, err
		}
		return SentimentSeries{Selection: sel, Points: points}, nil
	}
	accept := func(s SentimentSeries) bool {
		return s.Selection == sq.Selection()
	}
	sq.Query = New(ResourceSentiment, fetch, Options[SentimentSeries]{Timeout: timeout, Accept: accept}, m, log)
	return sq
}

// Selection returns the current selection
func (sq *SentimentQuery) Selection() SentimentSelection {
	sq.selMu.RLock()
	defer sq.selMu.RUnlock()
	return sq.sel
}

// Select changes the selection and triggers a refetch. Zero fields keep their current value.
func (sq *SentimentQuery) Select(sel SentimentSelection) error {
	if sel.Window != "" && !sel.Window.Valid() {
		return fmt.Errorf("%w: unsupported window %q", domain.ErrInvalid, sel.Window)
	}
	if sel.Limit < 0 {
		return fmt.Errorf("%w: negative limit", domain.ErrInvalid)
	}

	sq.selMu.Lock()
	if sel.Ticker != "" {
		sq.sel.Ticker = sel.Ticker
	}
	if sel.Window != "" {
		sq.sel.Window = sel.Window
	}
	if sel.Limit > 0 {
		sq.sel.Limit = sel.Limit
	}
	sq.selMu.Unlock()

	sq.Refetch()
	return nil
}

// SetConfig parameterizes the resource set
type SetConfig struct {
	TradesLimit int
	Sentiment   SentimentSelection
	Timeout     time.Duration
}

// Set groups the four resource queries
type Set struct {
	Positions   *Query[[]domain.Position]
	Trades      *Query[[]domain.Trade]
	Performance *Query[domain.Performance]
	Sentiment   *SentimentQuery
}

// NewSet builds all queries against backend
func NewSet(backend Backend, cfg SetConfig, m *metrics.Metrics, log zerolog.Logger) *Set {
	tradeQuery := monitorapi.TradeQuery{Limit: cfg.TradesLimit}

	return &Set{
		Positions: New(ResourcePositions, backend.Positions,
			Options[[]domain.Position]{Timeout: cfg.Timeout}, m, log),
		Trades: New(ResourceTrades, func(ctx context.Context) ([]domain.Trade, error) {
			return backend.Trades(ctx, tradeQuery)
		}, Options[[]domain.Trade]{Timeout: cfg.Timeout}, m, log),
		Performance: New(ResourcePerformance, backend.Performance,
			Options[domain.Performance]{Timeout: cfg.Timeout}, m, log),
		Sentiment: NewSentiment(backend, cfg.Sentiment, cfg.Timeout, m, log),
	}
}

// Register schedules the polls: core resources every pollEvery, sentiment every sentimentEvery.
func (s *Set) Register(sched *scheduler.Scheduler, pollEvery, sentimentEvery time.Duration) error {
	jobs := []struct {
		every time.Duration
		job   scheduler.Job
	}{
		{pollEvery, s.Positions},
		{pollEvery, s.Trades},
		{pollEvery, s.Performance},
		{sentimentEvery, s.Sentiment},
	}
	for _, j := range jobs {
		if err := sched.AddJob(fmt.Sprintf("@every %s", j.every), j.job); err != nil {
			return err
		}
	}
	return nil
}

// RefetchAll triggers a background refetch of every resource
func (s *Set) RefetchAll() {
	s.Positions.Refetch()
	s.Trades.Refetch()
	s.Performance.Refetch()
	s.Sentiment.Refetch()
}

// Close closes every query
func (s *Set) Close() {
	s.Positions.Close()
	s.Trades.Close()
	s.Performance.Close()
	s.Sentiment.Close()
}
