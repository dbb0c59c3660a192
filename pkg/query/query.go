// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package query parses list-valued URL query parameters.
package query

import (
	"strconv"
	"strings"
)

// Int64Slice parses query values such as ?ids=1,2&ids=3 into integers.
// Both repeated keys and comma-separated lists are accepted; invalid or
// non-positive entries are ignored and duplicates are dropped, keeping first
// occurrence order.
func Int64Slice(vals []string) []int64 {
	var res []int64
	seen := make(map[int64]struct{})

	for _, val := range vals {
		for _, v := range StringSlice(val) {
			i, err := strconv.ParseInt(v, 10, 64)
			if err != nil || i <= 0 {
				continue
			}
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			res = append(res, i)
		}
	}
	return res
}

// StringSlice parses a single comma-separated query string
// into a trimmed slice of strings.
func StringSlice(val string) []string {
	if val == "" {
		return nil
	}
	var res []string
	for _, v := range strings.Split(val, ",") {
		clean := strings.TrimSpace(v)
		if clean != "" {
			res = append(res, clean)
		}
	}
	return res
}
