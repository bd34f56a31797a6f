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
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"credential not found", passkey.ErrCredentialNotFound, http.StatusNotFound},
		{"wrapped credential not found", fmt.Errorf("revoke: %w", passkey.ErrCredentialNotFound), http.StatusNotFound},
		{"duplicate credential", passkey.ErrDuplicateCredential, http.StatusConflict},
		{"verification failed", passkey.ErrVerificationFailed, http.StatusBadRequest},
		{"challenge not found", passkey.ErrChallengeNotFound, http.StatusBadRequest},
		{"challenge expired", passkey.ErrChallengeExpired, http.StatusBadRequest},
		{"invalid request", passkey.ErrInvalidRequest, http.StatusBadRequest},
		{"invalid rest request", ErrInvalidRequest, http.StatusBadRequest},
		{"invalid param", ErrInvalidParam, http.StatusBadRequest},
		{"user not found", passkey.ErrUserNotFound, http.StatusInternalServerError},
		{"unknown error", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorToStatusCode(tt.err))
		})
	}
}

func TestClientError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, passkey.ErrCredentialNotFound},
		{http.StatusConflict, passkey.ErrDuplicateCredential},
		{http.StatusBadRequest, ErrInvalidRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusInternalServerError, ErrInternalError},
		{http.StatusTeapot, ErrInternalError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, clientError(tt.status), "status %d", tt.status)
	}
}

func TestHandleError_SanitizesBody(t *testing.T) {
	// The wrapped detail must never appear in the response body.
	internal := fmt.Errorf("verify assertion for user 42: %w", passkey.ErrVerificationFailed)

	rec := httptest.NewRecorder()
	handleError(rec, internal)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrInvalidRequest.Error(), resp.Error)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.NotContains(t, rec.Body.String(), "user 42")
}

func TestWriteErrorWithMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErrorWithMessage(rec, ErrUnauthorized, "Authentication failed", http.StatusUnauthorized)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrUnauthorized.Error(), resp.Error)
	assert.Equal(t, "Authentication failed", resp.Message)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
