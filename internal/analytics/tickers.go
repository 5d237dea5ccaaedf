package analytics

import "github.com/aristath/sentimentedge/internal/domain"

const (
	// DefaultTickerCap bounds the ticker universe
	DefaultTickerCap = 10
	recentTradeScan  = 10
)

// DefaultTickers seed the universe when the portfolio is quiet
var DefaultTickers = []string{"AAPL", "TSLA", "GME"}

// ActiveTickers builds the sentiment ticker universe: position tickers, then tickers from
// the first 10 recent trades, then defaults. Duplicates and empty tickers are dropped,
// first-seen order is kept, and the result is truncated to limit.
func ActiveTickers(positions []domain.Position, recentTrades []domain.Trade, defaults []string, limit int) []string {
	if limit <= 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, limit)
	out := make([]string, 0, limit)
	add := func(ticker string) bool {
		if ticker == "" {
			return true
		}
		if _, ok := seen[ticker]; ok {
			return true
		}
		seen[ticker] = struct{}{}
		out = append(out, ticker)
		return len(out) < limit
	}

	for _, p := range positions {
		if !add(p.Ticker) {
			return out
		}
	}
	for i, t := range recentTrades {
		if i >= recentTradeScan {
			break
		}
		if !add(t.Ticker) {
			return out
		}
	}
	for _, d := range defaults {
		if !add(d) {
			return out
		}
	}
	return out
}
