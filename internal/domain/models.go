// Package domain provides the wire-level value types consumed by the monitor.
package domain

import "time"

// Side is the direction of a trade or signal
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two known values
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Window is a sentiment aggregation window
type Window string

const (
	Window1m  Window = "1min"
	Window5m  Window = "5min"
	Window15m Window = "15min"
	Window1h  Window = "1h"
)

// Windows lists the aggregation windows served by the sentiment endpoint, shortest first.
var Windows = []Window{Window1m, Window5m, Window15m, Window1h}

// Valid reports whether the window is served by the backend
func (w Window) Valid() bool {
	for _, known := range Windows {
		if w == known {
			return true
		}
	}
	return false
}

// Next returns the window after w, wrapping around.
func (w Window) Next() Window {
	for i, known := range Windows {
		if w == known {
			return Windows[(i+1)%len(Windows)]
		}
	}
	return Windows[0]
}

// Position represents an open portfolio position.
// UnrealizedPnL and UnrealizedPnLPct come from the server and are never recomputed locally;
// the server applies fee and slippage adjustments the client does not model.
type Position struct {
	OpenedAt         time.Time `json:"opened_at"`
	Ticker           string    `json:"ticker"`
	ID               int64     `json:"id"`
	Quantity         int64     `json:"quantity"`
	EntryPrice       float64   `json:"entry_price"`
	CurrentPrice     float64   `json:"current_price"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	UnrealizedPnLPct float64   `json:"unrealized_pnl_pct"`
}

// MarketValue returns quantity times current price
func (p Position) MarketValue() float64 {
	return float64(p.Quantity) * p.CurrentPrice
}

// Trade represents an executed trade.
// RealizedPnL is set only on SELL trades that close all or part of a position.
type Trade struct {
	Timestamp   time.Time `json:"timestamp"`
	Ticker      string    `json:"ticker"`
	Side        Side      `json:"side"`
	RealizedPnL *float64  `json:"realized_pnl,omitempty"`
	PositionID  *int64    `json:"position_id,omitempty"`
	ID          int64     `json:"id"`
	Quantity    int64     `json:"quantity"`
	Price       float64   `json:"price"`
}

// Notional returns price times quantity
func (t Trade) Notional() float64 {
	return t.Price * float64(t.Quantity)
}

// SentimentPoint is one aggregated sentiment sample for a (ticker, window, timestamp) tuple
type SentimentPoint struct {
	Timestamp         time.Time `json:"timestamp"`
	Ticker            string    `json:"ticker"`
	AvgSentiment      float64   `json:"avg_sentiment"`
	WeightedSentiment float64   `json:"weighted_sentiment"`
	MentionCount      int       `json:"mention_count"`
	StdDev            float64   `json:"sentiment_std"`
	Momentum          float64   `json:"sentiment_momentum"`
}

// Signal is a trading signal pushed by the backend.
// ID is assigned by the client on receipt when the server omits it.
type Signal struct {
	Timestamp    time.Time `json:"timestamp"`
	ID           string    `json:"id,omitempty"`
	Ticker       string    `json:"ticker"`
	Action       Side      `json:"action"`
	Reason       string    `json:"reason"`
	Sentiment    float64   `json:"sentiment"`
	Confidence   float64   `json:"confidence,omitempty"`
	Price        float64   `json:"price"`
	MentionCount int       `json:"mention_count"`
}

// Performance holds aggregate trading performance.
// SharpeRatio is nil when the sample is too small to compute it.
type Performance struct {
	SharpeRatio   *float64 `json:"sharpe_ratio"`
	TotalPnL      float64  `json:"total_pnl"`
	DailyPnL      float64  `json:"daily_pnl"`
	WinRate       float64  `json:"win_rate"`
	WinningTrades int      `json:"winning_trades"`
	LosingTrades  int      `json:"losing_trades"`
	TotalTrades   int      `json:"total_trades"`
}
