// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses a query-string integer, ignoring surrounding
// whitespace. Empty or unparsable input yields def.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0)   // returns 42
//	n = utils.AtoiDefault(" 7 ", 0)   // returns 7
//	n = utils.AtoiDefault("", 10)     // returns 10
//	n = utils.AtoiDefault("x", 5)     // returns 5
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// TotalPages is the number of pages of size pageSize needed for total items.
// A non-positive pageSize yields 0.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
