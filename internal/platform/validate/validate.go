// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Architecture
//
// Services validate their inputs with it before touching storage, so
// handlers only decode and forward.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/yomira-translations/internal/platform/apperr"
)

var (
	// languageCodeRegex matches BCP 47 style codes such as "en", "pt-br" or "zh-hant".
	languageCodeRegex = regexp.MustCompile(`^[a-z]{2,3}(?:-[a-z0-9]{2,8})*$`)

	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every request/operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// Range fails if the value is outside the [min, max] range (inclusive).
func (v *Validator) Range(field string, value, min, max int) *Validator {
	if value < min || value > max {
		v.add(field, fmt.Sprintf("Must be between %d and %d", min, max))
	}
	return v
}

// PositiveID fails if the identifier is zero or negative.
func (v *Validator) PositiveID(field string, id int64) *Validator {
	if id <= 0 {
		v.add(field, "Must be a positive integer")
	}
	return v
}

// PositiveIDs fails once if any identifier in the list is zero or negative.
func (v *Validator) PositiveIDs(field string, ids []int64) *Validator {
	for _, id := range ids {
		if id <= 0 {
			v.add(field, "Every entry must be a positive integer")
			break
		}
	}
	return v
}

// MaxItems fails if the list holds more than max entries.
func (v *Validator) MaxItems(field string, count, max int) *Validator {
	if count > max {
		v.add(field, fmt.Sprintf("Maximum %d entries", max))
	}
	return v
}

// LanguageCode fails if the value is not a lowercase BCP 47 style tag.
func (v *Validator) LanguageCode(field, value string) *Validator {
	if !languageCodeRegex.MatchString(value) {
		v.add(field, "Must be a language code such as en or pt-br")
	}
	return v
}

// Custom adds a failure with a custom message if the condition is true.
//
// # Example
//
//	v.Custom ("score", score < 1 || score > 10, "Must be between 1 and 10")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns a [apperr.AppError] (VALIDATION_ERROR) if any rules failed,
// or nil if all rules passed.
//
// Call it once at the end of the chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

// RequiredError is a shortcut to create a single-field validation error.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   field,
		Message: message,
	})
}
