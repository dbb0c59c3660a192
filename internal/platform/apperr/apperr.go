// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for the
translation service.

It provides a rich error type that bridges the gap between low-level Domain/Storage
errors and high-level HTTP responses.

Architecture:

  - AppError: A struct containing machine-readable Code and a client-safe message.
  - Matching: Two AppErrors match under [errors.Is] when their Code is equal, so
    domain packages can expose sentinels and still attach a Cause.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves the service layer should be an [AppError] to ensure
consistent API responses.
*/
package apperr

import (
	"errors"
	"net/http"
)

// # Error Codes

const (
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeValidation         = "VALIDATION_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
)

// AppError is the canonical error type for the API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "CONFLICT").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an [*AppError] carrying the same Code.
func (e *AppError) Is(target error) bool {
	other, ok := target.(*AppError)
	return ok && other.Code == e.Code
}

// WithCause returns a copy of e that records cause for server-side logging.
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// New creates an [AppError] with an arbitrary domain code.
//
// Example:
//
//	apperr.New("SAME_LANGUAGE", http.StatusUnprocessableEntity, "Stories share a language")
func New(code string, httpStatus int, msg string) *AppError {
	return &AppError{
		Code:       code,
		Message:    msg,
		HTTPStatus: httpStatus,
	}
}

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Story") // Returns "Story not found"
func NotFound(resource string) *AppError {
	return New(CodeNotFound, http.StatusNotFound, resource+" not found")
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return New(CodeUnauthorized, http.StatusUnauthorized, msg)
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return New(CodeForbidden, http.StatusForbidden, msg)
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return New(CodeConflict, http.StatusConflict, msg)
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	err := New(CodeValidation, http.StatusBadRequest, msg)
	err.Details = details
	return err
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	err := New(CodeInternal, http.StatusInternalServerError, "An unexpected error occurred")
	err.Cause = cause
	return err
}

// StorageUnavailable creates a 503 [AppError] for an unreachable or
// uninitialised persistence layer.
func StorageUnavailable(cause error) *AppError {
	err := New(CodeStorageUnavailable, http.StatusServiceUnavailable, "Storage is temporarily unavailable")
	err.Cause = cause
	return err
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries an [*AppError] with the given code.
func HasCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
