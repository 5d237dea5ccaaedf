package ui

import (
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/sentimentedge/internal/analytics"
	"github.com/aristath/sentimentedge/internal/theme"
)

// Lower eighth blocks, indexed by fill in eighths.
var riseBlocks = [9]rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

const baselineRune = '─'

type chartPoint struct {
	At    time.Time
	Value float64
}

func pnlChartPoints(points []analytics.PnLPoint) []chartPoint {
	out := make([]chartPoint, len(points))
	for i, p := range points {
		out[i] = chartPoint{At: p.Timestamp, Value: p.Total}
	}
	return out
}

func sentimentChartPoints(points []analytics.SmoothedPoint) []chartPoint {
	out := make([]chartPoint, len(points))
	for i, p := range points {
		out[i] = chartPoint{At: p.Timestamp, Value: p.Value}
	}
	return out
}

// renderBaselineChart draws points as bars growing away from baseline: up in
// upColor, down in downColor. Columns span equal time intervals and the
// baseline row is drawn where no bar covers it. points must be time ordered.
func renderBaselineChart(points []chartPoint, baseline float64, width, height int, upColor, downColor lipgloss.Color) string {
	if len(points) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	cols := bucketByTime(points, width)

	lo, hi := baseline, baseline
	for _, v := range cols {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	band := (hi - lo) / float64(height)

	baseRow := int((hi - baseline) / band)
	if baseRow >= height {
		baseRow = height - 1
	}

	up := lipgloss.NewStyle().Foreground(upColor)
	down := lipgloss.NewStyle().Foreground(downColor)
	axis := lipgloss.NewStyle().Foreground(theme.Default.Border)

	rows := make([]string, height)
	for r := 0; r < height; r++ {
		top := hi - float64(r)*band
		bottom := top - band

		var sb strings.Builder
		for _, v := range cols {
			var cell rune
			var style lipgloss.Style
			if v >= baseline {
				cell, style = riseBlocks[eighths(overlap(bottom, top, baseline, v), band)], up
			} else {
				cell, style = fallBlock(eighths(overlap(bottom, top, v, baseline), band)), down
			}
			if cell == ' ' {
				if r == baseRow {
					sb.WriteString(axis.Render(string(baselineRune)))
				} else {
					sb.WriteRune(' ')
				}
				continue
			}
			sb.WriteString(style.Render(string(cell)))
		}
		rows[r] = sb.String()
	}
	return strings.Join(rows, "\n")
}

// bucketByTime maps points onto n columns of equal time span. Each column
// shows the last value seen at or before its end, so gaps carry forward.
// Without a time span the points are spread by index.
func bucketByTime(points []chartPoint, n int) []float64 {
	first, last := points[0].At, points[len(points)-1].At
	span := last.Sub(first)

	cols := make([]float64, n)
	if span <= 0 {
		for i := range cols {
			cols[i] = points[i*len(points)/n].Value
		}
		return cols
	}

	j := 0
	current := points[0].Value
	for i := range cols {
		end := first.Add(time.Duration(float64(span) * float64(i+1) / float64(n)))
		for j < len(points) && !points[j].At.After(end) {
			current = points[j].Value
			j++
		}
		cols[i] = current
	}
	return cols
}

// overlap is the length of [a,b] inside the cell [bottom,top]
func overlap(bottom, top, a, b float64) float64 {
	return math.Max(0, math.Min(top, b)-math.Max(bottom, a))
}

func eighths(covered, band float64) int {
	e := int(math.Round(covered / band * 8))
	if e > 8 {
		e = 8
	}
	return e
}

// fallBlock approximates a bar hanging from the top of a cell; only half
// and full upper blocks exist.
func fallBlock(e int) rune {
	switch {
	case e >= 6:
		return '█'
	case e >= 2:
		return '▀'
	default:
		return ' '
	}
}
