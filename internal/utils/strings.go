// Package utils holds small string helpers shared by config and the status API.
package utils

import "strings"

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseTickers splits a comma-separated ticker list, normalizing each symbol.
// Blank entries and repeats are dropped; first occurrence wins.
// Returns nil for empty/whitespace-only input.
func ParseTickers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var result []string
	seen := make(map[string]bool)
	for _, v := range strings.Split(s, ",") {
		ticker := NormalizeTicker(v)
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		result = append(result, ticker)
	}

	if len(result) == 0 {
		return nil
	}

	return result
}
