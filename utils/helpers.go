package utils

import (
	"math"
	"strconv"
	"strings"
)

// RoundTenth rounds to one decimal place, the precision leave balances are kept at.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// SanitizeString removes dangerous characters from string
func SanitizeString(input string) string {
	// Remove null bytes and control characters
	input = strings.ReplaceAll(input, "\x00", "")

	// Trim whitespace
	input = strings.TrimSpace(input)

	return input
}

// ParseUint parses a positive numeric identifier.
func ParseUint(s string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, strconv.ErrSyntax
	}
	return uint(n), nil
}
