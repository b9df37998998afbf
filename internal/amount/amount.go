// Package amount provides pure helpers for cleaning raw amount strings
// extracted from bank statements and for detecting their sign conventions.
package amount

import (
	"regexp"
	"strings"
)

var (
	// Currency symbols, thousands separators and whitespace that may wrap a value.
	symbolRe = regexp.MustCompile(`[$₹€£¥,\s]`)
	// First numeric run, optionally with a decimal part.
	numericRe = regexp.MustCompile(`\d+\.?\d*`)
)

// Normalize strips currency symbols, commas and whitespace from a raw amount
// string and returns the first numeric value found (digits and decimal point
// only). Returns "" when the input contains no numeric value. Never fails.
func Normalize(value string) string {
	if value == "" {
		return ""
	}
	cleaned := symbolRe.ReplaceAllString(strings.TrimSpace(value), "")
	return numericRe.FindString(cleaned)
}

// DetectNegative reports whether a raw amount string represents money out.
// It recognizes accounting parentheses, leading or trailing minus signs, and
// a "Dr" debit marker.
//
// The "dr" check is a substring match anywhere in the value, so narration
// text that leaks into an amount cell (e.g. "Madras branch") flips the sign.
// This matches the behavior of the system this replaces and is pinned by
// tests; do not tighten it without migrating existing statements.
func DetectNegative(value string) bool {
	if value == "" {
		return false
	}
	if strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
		return true
	}
	if strings.HasPrefix(value, "-") || strings.HasSuffix(value, "-") {
		return true
	}
	return strings.Contains(strings.ToLower(strings.TrimSpace(value)), "dr")
}
