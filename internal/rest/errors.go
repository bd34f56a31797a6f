// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Common errors
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidParam     = errors.New("invalid parameter")
	ErrInternalError    = errors.New("internal server error")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrRegistrationFail = errors.New("registration failed")
	ErrLoginFail        = errors.New("login failed")
)

// writeError writes an error response to the client.
func writeError(w http.ResponseWriter, err error, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error: err.Error(),
		Code:  statusCode,
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// writeErrorWithMessage writes an error response with a custom message.
func writeErrorWithMessage(w http.ResponseWriter, err error, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   err.Error(),
		Message: message,
		Code:    statusCode,
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// mapErrorToStatusCode maps passkey service errors to HTTP status codes.
//
// Ceremony failures are deliberately collapsed: a consumed, expired or
// missing challenge and a failed verification all map to the same
// generic 400. A missing user behind an authenticated session is a
// server fault, not a client one.
func mapErrorToStatusCode(err error) int {
	switch {
	case passkey.IsCredentialNotFound(err):
		return http.StatusNotFound
	case passkey.IsDuplicateCredential(err):
		return http.StatusConflict
	case passkey.IsVerificationFailed(err),
		passkey.IsChallengeNotFound(err),
		passkey.IsChallengeExpired(err),
		errors.Is(err, passkey.ErrInvalidRequest),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidParam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// clientError returns the sanitized error surfaced to the client for a
// given status code. Verification internals never leave the server.
func clientError(statusCode int) error {
	switch statusCode {
	case http.StatusNotFound:
		return passkey.ErrCredentialNotFound
	case http.StatusConflict:
		return passkey.ErrDuplicateCredential
	case http.StatusBadRequest:
		return ErrInvalidRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return ErrInternalError
	}
}

// handleError maps the error to a status code and writes a generic
// response body for it.
func handleError(w http.ResponseWriter, err error) {
	statusCode := mapErrorToStatusCode(err)
	writeError(w, clientError(statusCode), statusCode)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}
