package analytics

import (
	"sort"
	"time"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/sentimentedge/internal/domain"
)

// SentimentSummary condenses a sentiment series for the dashboard cards
type SentimentSummary struct {
	Ticker        string    `json:"ticker"`
	Points        int       `json:"points"`
	Latest        float64   `json:"latest"`
	LatestAt      time.Time `json:"latest_at"`
	Mean          float64   `json:"mean"`
	StdDev        float64   `json:"std_dev"`
	Momentum      float64   `json:"momentum"`
	TotalMentions int       `json:"total_mentions"`
}

// SmoothedPoint is one value of a moving-average overlay
type SmoothedPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// SummarizeSentiment computes latest, mean and sample std dev of the weighted sentiment.
func SummarizeSentiment(points []domain.SentimentPoint) SentimentSummary {
	if len(points) == 0 {
		return SentimentSummary{}
	}

	ordered := sortedByTime(points)
	values := weighted(ordered)
	last := ordered[len(ordered)-1]

	summary := SentimentSummary{
		Ticker:   last.Ticker,
		Points:   len(ordered),
		Latest:   last.WeightedSentiment,
		LatestAt: last.Timestamp,
		Momentum: last.Momentum,
	}
	if len(values) > 1 {
		summary.Mean, summary.StdDev = stat.MeanStdDev(values, nil)
	} else {
		summary.Mean = values[0]
	}
	for _, p := range ordered {
		summary.TotalMentions += p.MentionCount
	}
	return summary
}

// SmoothSentiment returns a simple moving average of the weighted sentiment.
// The first period-1 points have no average and are omitted.
func SmoothSentiment(points []domain.SentimentPoint, period int) []SmoothedPoint {
	if period < 1 || len(points) < period {
		return []SmoothedPoint{}
	}

	ordered := sortedByTime(points)
	values := weighted(ordered)

	avg := values
	if period > 1 {
		avg = talib.Sma(values, period)
	}

	out := make([]SmoothedPoint, 0, len(ordered)-period+1)
	for i := period - 1; i < len(ordered); i++ {
		out = append(out, SmoothedPoint{Timestamp: ordered[i].Timestamp, Value: avg[i]})
	}
	return out
}

func sortedByTime(points []domain.SentimentPoint) []domain.SentimentPoint {
	ordered := make([]domain.SentimentPoint, len(points))
	copy(ordered, points)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	return ordered
}

func weighted(points []domain.SentimentPoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.WeightedSentiment
	}
	return values
}
