package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{12.5, "$12.50"},
		{1234.5, "$1,234.50"},
		{1234567.891, "$1,234,567.89"},
		{-3, "-$3.00"},
		{-1234.5, "-$1,234.50"},
		{0.999, "$1.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMoney(tt.in), "formatMoney(%v)", tt.in)
	}
}

func TestFormatSignedMoney(t *testing.T) {
	assert.Equal(t, "+$12.50", formatSignedMoney(12.5))
	assert.Equal(t, "+$0.00", formatSignedMoney(0))
	assert.Equal(t, "-$3.00", formatSignedMoney(-3))
}

func TestFormatPercentAndRatio(t *testing.T) {
	assert.Equal(t, "+3.33%", formatPercent(3.333))
	assert.Equal(t, "-1.50%", formatPercent(-1.5))
	assert.Equal(t, "60.0%", formatRatio(0.6))
	assert.Equal(t, "+0.52", formatSentiment(0.521))
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "just now", formatAge(-time.Second))
	assert.Equal(t, "just now", formatAge(2*time.Second))
	assert.Equal(t, "42s ago", formatAge(42*time.Second))
	assert.Equal(t, "5m ago", formatAge(5*time.Minute+10*time.Second))
	assert.Equal(t, "3h ago", formatAge(3*time.Hour))
	assert.Equal(t, "2d ago", formatAge(49*time.Hour))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hel…", truncate("hello world", 4))
	assert.Equal(t, "…", truncate("hello", 1))
	assert.Equal(t, "", truncate("hello", 0))
}
