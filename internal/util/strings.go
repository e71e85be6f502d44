// Package util provides small formatting helpers shared by the CLI and the
// dashboard.
package util

import "strings"

// JoinOrDash joins items with sep, or returns "-" for an empty list.
func JoinOrDash(items []string, sep string) string {
	return JoinOrDefault(items, sep, "-")
}

// JoinOrDefault joins items with sep, or returns def for an empty list.
func JoinOrDefault(items []string, sep, def string) string {
	if len(items) == 0 {
		return def
	}
	return strings.Join(items, sep)
}

// OrDash returns s, or "-" when s is empty.
func OrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Pluralize returns singular if count is 1, otherwise plural.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}
