// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package uuidv7 wraps google/uuid to generate time-ordered UUIDv7 values.
//
// Request IDs use it so log lines sort by arrival when grepped across instances.
package uuidv7

import "github.com/google/uuid"

// New generates a new UUIDv7 string.
//
// If the OS random source fails, it falls back to a random v4 value so a
// request is never rejected for want of a correlation ID.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
