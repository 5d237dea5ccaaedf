// Package charts renders PNG charts for the status API.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/aristath/sentimentedge/internal/analytics"
	"github.com/aristath/sentimentedge/internal/domain"
)

// ErrNotEnoughData is returned when a series has fewer than two points
var ErrNotEnoughData = errors.New("need at least 2 data points")

// RenderPnLChart renders the cumulative realized P&L curve with a zero baseline.
// Returns raw PNG bytes.
func RenderPnLChart(points []analytics.PnLPoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrNotEnoughData, len(points))
	}

	xValues := make([]time.Time, len(points))
	totalY := make([]float64, len(points))
	zeroY := make([]float64, len(points))

	for i, p := range points {
		xValues[i] = p.Timestamp
		totalY[i] = p.Total
	}

	color := drawing.ColorFromHex("16a34a") // green-600
	if analytics.FinalPnL(points) < 0 {
		color = drawing.ColorFromHex("dc2626") // red-600
	}

	totalSeries := chart.TimeSeries{
		Name: "Cumulative P&L",
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: 2.5,
			FillColor:   color.WithAlpha(48),
		},
		XValues: xValues,
		YValues: totalY,
	}

	zeroSeries := chart.TimeSeries{
		Name: "Break-even",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
			StrokeWidth:     1,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: xValues,
		YValues: zeroY,
	}

	graph := chart.Chart{
		Title:  "Cumulative P&L",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			ValueFormatter: timeFormatter("Jan 02 15:04"),
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			totalSeries,
			zeroSeries,
		},
	}

	return render(&graph)
}

// RenderSentimentChart renders weighted sentiment for one ticker, with an optional moving average.
func RenderSentimentChart(ticker string, points []domain.SentimentPoint, smoothed []analytics.SmoothedPoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrNotEnoughData, len(points))
	}

	xValues := make([]time.Time, len(points))
	yValues := make([]float64, len(points))
	for i, p := range points {
		xValues[i] = p.Timestamp
		yValues[i] = p.WeightedSentiment
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name: "Weighted sentiment",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
				StrokeWidth: 2,
			},
			XValues: xValues,
			YValues: yValues,
		},
	}

	if len(smoothed) >= 2 {
		sx := make([]time.Time, len(smoothed))
		sy := make([]float64, len(smoothed))
		for i, p := range smoothed {
			sx[i] = p.Timestamp
			sy[i] = p.Value
		}
		series = append(series, chart.TimeSeries{
			Name: "Moving average",
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("f59e0b"), // amber-500
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{4.0, 2.0},
			},
			XValues: sx,
			YValues: sy,
		})
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s sentiment", ticker),
		Width:  900,
		Height: 320,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			ValueFormatter: timeFormatter("15:04"),
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: -1, Max: 1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%+.2f", f)
				}
				return ""
			},
		},
		Series: series,
	}

	return render(&graph)
}

func render(graph *chart.Chart) ([]byte, error) {
	graph.Elements = []chart.Renderable{
		chart.LegendLeft(graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func timeFormatter(layout string) chart.ValueFormatter {
	return func(v interface{}) string {
		if t, ok := v.(float64); ok {
			return chart.TimeFromFloat64(t).Format(layout)
		}
		return ""
	}
}
