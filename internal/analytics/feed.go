package analytics

import "github.com/aristath/sentimentedge/internal/domain"

// FeedWindow returns the newest n signals of a newest-first buffer as a fresh slice.
func FeedWindow(signals []domain.Signal, n int) []domain.Signal {
	if n <= 0 || len(signals) == 0 {
		return []domain.Signal{}
	}
	if n > len(signals) {
		n = len(signals)
	}
	out := make([]domain.Signal, n)
	copy(out, signals[:n])
	return out
}

// SignalCounts tallies buy and sell signals
func SignalCounts(signals []domain.Signal) (buys, sells int) {
	for _, s := range signals {
		switch s.Action {
		case domain.SideBuy:
			buys++
		case domain.SideSell:
			sells++
		}
	}
	return buys, sells
}
