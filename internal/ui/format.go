package ui

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// formatMoney renders v as dollars with thousands separators: -$1,234.50
func formatMoney(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := math.Floor(v)
	cents := math.Round((v - whole) * 100)
	if cents >= 100 {
		whole++
		cents -= 100
	}
	return fmt.Sprintf("%s$%s.%02.0f", sign, formatWithSeparators(whole), cents)
}

// formatSignedMoney always carries a sign: +$12.50, -$3.00
func formatSignedMoney(v float64) string {
	if v < 0 {
		return formatMoney(v)
	}
	return "+" + formatMoney(v)
}

// formatPercent renders an already-scaled percentage with sign: +3.33%
func formatPercent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// formatRatio renders a [0,1] ratio as a percentage: 0.6 -> 60.0%
func formatRatio(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func formatSentiment(v float64) string {
	return fmt.Sprintf("%+.2f", v)
}

// formatAge renders d as a coarse "ago" string
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "just now"
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func formatWithSeparators(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.0f", v)

	n := len(s)
	if n <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var result strings.Builder
	if neg {
		result.WriteByte('-')
	}
	offset := n % 3
	if offset > 0 {
		result.WriteString(s[:offset])
	}
	for i := offset; i < n; i += 3 {
		if i > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// truncate shortens s to n runes with an ellipsis
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
