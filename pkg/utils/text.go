// Package utils provides shared utilities for text, math, and logging.
package utils

import "strings"

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// SplitWords splits text on whitespace and returns non-empty words.
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// CountTokens returns the token count of text. Tokens are whitespace-separated
// words; provider-exact subword counts are not observable on this side of the
// API, so every budget in the pipeline is expressed in these units.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// CollapseSpaces trims text and collapses runs of whitespace to single spaces.
func CollapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
