// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package convert provides quick type-conversion utilities.

It wraps [strconv] to provide fault-tolerant conversions, returning a default
instead of an error when parsing fails. This is useful for optional query
parameters.

Do not use this package if distinguishing between malformed data and zero values
is important in your domain logic; use explicit standard libraries instead.
*/
package convert

import (
	"strconv"
	"strings"
)

// ToIntD converts a string to an int, returning the provided default if parsing fails or string is empty.
func ToIntD(str string, def int) int {

	// If the string is empty, return the default value
	if str == "" {
		return def
	}

	// Try to parse the string as an integer
	if v, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
		return v
	}

	// If parsing fails, return the default value
	return def
}

// ToInt64 converts a string to an int64, silencing parsing errors.
// It returns 0 if the string is empty or cannot be parsed.
func ToInt64(s string) int64 {
	if s == "" {
		return 0
	}

	v, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v
}

// ToInt64Ptr converts a string to a *int64, returning nil when the string is
// empty, malformed or not positive. Used for optional identifier filters.
func ToInt64Ptr(s string) *int64 {
	v := ToInt64(s)
	if v <= 0 {
		return nil
	}
	return &v
}
