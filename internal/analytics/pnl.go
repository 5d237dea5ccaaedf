// Package analytics derives presentation values from the reconciled baseline.
// Every function here is pure: same input, same output, no retained state.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/sentimentedge/internal/domain"
)

// PnLPoint is one step of the cumulative realized P&L curve
type PnLPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Ticker    string    `json:"ticker"`
	TradeID   int64     `json:"trade_id"`
	Realized  float64   `json:"realized"`
	Total     float64   `json:"total"`
}

// CumulativePnL folds the realized P&L of trades into a running total, oldest first.
// Trades without realized P&L are skipped; equal timestamps keep their input order.
func CumulativePnL(trades []domain.Trade) []PnLPoint {
	realized := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t.RealizedPnL != nil {
			realized = append(realized, t)
		}
	}
	if len(realized) == 0 {
		return []PnLPoint{}
	}

	sort.SliceStable(realized, func(i, j int) bool {
		return realized[i].Timestamp.Before(realized[j].Timestamp)
	})

	points := make([]PnLPoint, len(realized))
	running := decimal.Zero
	for i, t := range realized {
		running = running.Add(decimal.NewFromFloat(*t.RealizedPnL))
		points[i] = PnLPoint{
			Timestamp: t.Timestamp,
			Ticker:    t.Ticker,
			TradeID:   t.ID,
			Realized:  *t.RealizedPnL,
			Total:     running.InexactFloat64(),
		}
	}
	return points
}

// FinalPnL returns the last running total, or 0 for an empty curve
func FinalPnL(points []PnLPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	return points[len(points)-1].Total
}
