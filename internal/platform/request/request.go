// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/taibuivan/yomira-translations/internal/platform/apperr"
	"github.com/taibuivan/yomira-translations/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-translations/internal/platform/sec"
	"github.com/taibuivan/yomira-translations/internal/platform/validate"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
ID retrieves a named numeric URL parameter from the request.

Returns:
  - int64: The parsed identifier
  - error: A validation error naming the parameter if it is not a positive integer
*/
func ID(request *http.Request, name string) (int64, error) {
	raw := chi.URLParam(request, name)

	identifier, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || identifier <= 0 {
		return 0, validate.RequiredError(name, "must be a positive integer")
	}
	return identifier, nil
}

/*
Claims extracts the authenticated user claims from the request context.

Returns nil if the request is not authenticated.
*/
func Claims(request *http.Request) *sec.AuthClaims {
	return ctxutil.GetAuthUser(request.Context())
}

/*
RequiredClaims ensures the request is authenticated and returns the user claims.

Returns:
  - *sec.AuthClaims: The authenticated user claims
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredClaims(request *http.Request) (*sec.AuthClaims, error) {

	// Get user claims
	claims := ctxutil.GetAuthUser(request.Context())

	// If the user is not authenticated, return an error
	if claims == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	return claims, nil
}

/*
RequiredUserID returns the numeric ID of the currently logged-in user.

Returns:
  - int64: User ID
  - error: apperr.Unauthorized if not authenticated or the subject is not numeric
*/
func RequiredUserID(request *http.Request) (int64, error) {
	if _, err := RequiredClaims(request); err != nil {
		return 0, err
	}

	userID, ok := ctxutil.GetUserID(request.Context())
	if !ok {
		return 0, apperr.Unauthorized("Token subject is not a valid account")
	}
	return userID, nil
}
