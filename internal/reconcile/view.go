package reconcile

import (
	"time"

	"github.com/aristath/sentimentedge/internal/analytics"
	"github.com/aristath/sentimentedge/internal/domain"
	"github.com/aristath/sentimentedge/internal/queries"
)

// Where the displayed performance came from
const (
	PerformanceLive   = "live"
	PerformancePolled = "polled"
	PerformanceNone   = "none"
)

// Connection describes the push channel
type Connection struct {
	Status  string `json:"status"`
	Attempt int    `json:"attempt"`
	Error   string `json:"error,omitempty"`
}

// Freshness describes one polled resource
type Freshness struct {
	Ready     bool      `json:"ready"`
	Fetching  bool      `json:"fetching"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Age       string    `json:"age,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorAt   time.Time `json:"error_at,omitempty"`
}

// View is a read-only copy of the reconciled state plus its derivations.
// Nothing in it aliases Core internals.
type View struct {
	GeneratedAt       time.Time                   `json:"generated_at"`
	Connection        Connection                  `json:"connection"`
	Positions         []domain.Position           `json:"positions"`
	Trades            []domain.Trade              `json:"trades"`
	Performance       *domain.Performance         `json:"performance"`
	PerformanceSource string                      `json:"performance_source"`
	Signals           []domain.Signal             `json:"signals"`
	Feed              []domain.Signal             `json:"feed"`
	CumulativePnL     []analytics.PnLPoint        `json:"cumulative_pnl"`
	ActiveTickers     []string                    `json:"active_tickers"`
	Sentiment         *queries.SentimentSeries    `json:"sentiment,omitempty"`
	SentimentSummary  *analytics.SentimentSummary `json:"sentiment_summary,omitempty"`
	Freshness         map[string]Freshness        `json:"freshness"`
}

func freshnessOf[T any](s queries.Snapshot[T], now time.Time) Freshness {
	f := Freshness{
		Ready:    s.Ready,
		Fetching: s.Fetching,
	}
	if s.Ready {
		f.UpdatedAt = s.UpdatedAt
		f.Age = s.Age(now).Truncate(time.Second).String()
	}
	if s.Err != nil {
		f.Error = s.Err.Error()
		f.ErrorAt = s.ErrAt
	}
	return f
}
