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
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkey/pkg/auth"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// HandlerContext holds dependencies for REST handlers.
type HandlerContext struct {
	// Version is the API version
	Version string
	// Service is the passkey credential lifecycle service
	Service *passkey.Service
	// HealthChecker manages health check probes
	HealthChecker HealthChecker
}

// HealthChecker defines the interface for health checking.
type HealthChecker interface {
	Live(ctx context.Context) health.CheckResult
	Ready(ctx context.Context) []health.CheckResult
	Startup(ctx context.Context) health.CheckResult
}

// NewHandlerContext creates a new handler context.
func NewHandlerContext(service *passkey.Service, version string) *HandlerContext {
	return &HandlerContext{
		Version: version,
		Service: service,
	}
}

// SetHealthChecker sets the health checker for the handler context.
func (h *HandlerContext) SetHealthChecker(checker HealthChecker) {
	h.HealthChecker = checker
}

// HealthHandler handles GET /health requests.
func (h *HandlerContext) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: h.Version,
	}
	writeJSON(w, resp, http.StatusOK)
}

// subject returns the authenticated account ID from the request context.
// The authentication middleware guarantees an identity on gated routes.
func subject(r *http.Request) (string, bool) {
	identity := auth.GetIdentity(r.Context())
	if identity == nil || identity.Subject == "" {
		return "", false
	}
	return identity.Subject, true
}

// BeginRegistrationHandler handles GET /api/v1/passkeys/registration/options.
//
// Returns the credential creation options for the authenticated user and
// stores the pending ceremony server-side. Starting a new ceremony
// replaces any outstanding one for the same user.
func (h *HandlerContext) BeginRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(r)
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	start := time.Now()
	options, err := h.Service.BeginRegistration(r.Context(), userID)
	if err != nil {
		metrics.RecordError(metrics.OpBeginRegistration, "service")
		// An authenticated session referencing a missing account is a
		// server-side inconsistency, never a 404.
		if passkey.IsUserNotFound(err) {
			writeError(w, ErrInternalError, http.StatusInternalServerError)
			return
		}
		handleError(w, err)
		return
	}
	metrics.RecordCeremony(metrics.OpBeginRegistration, metrics.StatusSuccess, time.Since(start).Seconds())

	writeJSON(w, options, http.StatusOK)
}

// FinishRegistrationHandler handles POST /api/v1/passkeys/registration.
//
// The request body is the authenticator's PublicKeyCredential JSON. On
// success the new credential is persisted and returned with 201. The
// pending challenge is consumed either way, so a failed attempt needs a
// fresh options request.
func (h *HandlerContext) FinishRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(r)
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		metrics.RecordError(metrics.OpFinishRegistration, "parse")
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	start := time.Now()
	cred, err := h.Service.FinishRegistration(r.Context(), userID, response)
	if err != nil {
		metrics.RecordCeremony(metrics.OpFinishRegistration, metrics.StatusError, time.Since(start).Seconds())
		metrics.RecordError(metrics.OpFinishRegistration, errorType(err))
		if passkey.IsUserNotFound(err) {
			writeError(w, ErrInternalError, http.StatusInternalServerError)
			return
		}
		handleError(w, err)
		return
	}
	metrics.RecordCeremony(metrics.OpFinishRegistration, metrics.StatusSuccess, time.Since(start).Seconds())

	writeJSON(w, newCredentialResponse(cred), http.StatusCreated)
}

// ListCredentialsHandler handles GET /api/v1/passkeys.
func (h *HandlerContext) ListCredentialsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(r)
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	creds, err := h.Service.ListCredentials(r.Context(), userID)
	if err != nil {
		metrics.RecordError(metrics.OpListCredentials, "service")
		if passkey.IsUserNotFound(err) {
			writeError(w, ErrInternalError, http.StatusInternalServerError)
			return
		}
		handleError(w, err)
		return
	}

	resp := ListCredentialsResponse{
		Credentials: make([]CredentialResponse, 0, len(creds)),
		Total:       len(creds),
	}
	for _, cred := range creds {
		resp.Credentials = append(resp.Credentials, newCredentialResponse(cred))
	}

	writeJSON(w, resp, http.StatusOK)
}

// RevokeCredentialHandler handles DELETE /api/v1/passkeys/{credentialID}.
//
// The path parameter is the base64url credential ID. Credentials owned
// by other accounts are reported as not found.
func (h *HandlerContext) RevokeCredentialHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(r)
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	param := chi.URLParam(r, "credentialID")
	if err := ValidateCredentialIDParam(param); err != nil {
		writeError(w, ErrInvalidParam, http.StatusBadRequest)
		return
	}
	credID, err := decodeCredentialID(param)
	if err != nil {
		writeError(w, ErrInvalidParam, http.StatusBadRequest)
		return
	}

	start := time.Now()
	if err := h.Service.RevokeCredential(r.Context(), userID, credID); err != nil {
		metrics.RecordCeremony(metrics.OpRevokeCredential, metrics.StatusError, time.Since(start).Seconds())
		metrics.RecordError(metrics.OpRevokeCredential, errorType(err))
		handleError(w, err)
		return
	}
	metrics.RecordCeremony(metrics.OpRevokeCredential, metrics.StatusSuccess, time.Since(start).Seconds())

	resp := RevokeCredentialResponse{
		Revoked: true,
		Message: "Credential revoked",
	}
	writeJSON(w, resp, http.StatusOK)
}

// BeginLoginHandler handles POST /api/v1/login/options.
//
// With an email in the body it returns assertion options for that
// account's credentials. With no email it returns discoverable
// credential options.
func (h *HandlerContext) BeginLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginOptionsRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, ErrInvalidRequest, http.StatusBadRequest)
			return
		}
	}

	if req.Email != "" {
		if err := ValidateEmail(req.Email); err != nil {
			writeError(w, ErrInvalidRequest, http.StatusBadRequest)
			return
		}
	}

	start := time.Now()
	options, err := h.Service.BeginLogin(r.Context(), req.Email)
	if err != nil {
		metrics.RecordError(metrics.OpBeginLogin, errorType(err))
		if passkey.IsUserNotFound(err) || errors.Is(err, passkey.ErrNoCredentials) {
			writeError(w, ErrLoginFail, http.StatusNotFound)
			return
		}
		handleError(w, err)
		return
	}
	metrics.RecordCeremony(metrics.OpBeginLogin, metrics.StatusSuccess, time.Since(start).Seconds())

	writeJSON(w, options, http.StatusOK)
}

// FinishLoginHandler handles POST /api/v1/login.
//
// The body carries the optional email and the authenticator's assertion
// JSON. On success a session token is returned. All ceremony failures
// surface as the same generic 401.
func (h *HandlerContext) FinishLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}
	if req.Credential == "" {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(strings.NewReader(req.Credential))
	if err != nil {
		metrics.RecordError(metrics.OpFinishLogin, "parse")
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	start := time.Now()
	token, user, err := h.Service.FinishLogin(r.Context(), req.Email, response)
	if err != nil {
		metrics.RecordCeremony(metrics.OpFinishLogin, metrics.StatusError, time.Since(start).Seconds())
		metrics.RecordError(metrics.OpFinishLogin, errorType(err))
		writeError(w, ErrLoginFail, http.StatusUnauthorized)
		return
	}
	metrics.RecordCeremony(metrics.OpFinishLogin, metrics.StatusSuccess, time.Since(start).Seconds())

	resp := LoginResponse{
		Token:  token,
		UserID: user.ID,
		Email:  user.Email,
	}
	writeJSON(w, resp, http.StatusOK)
}

// decodeCredentialID decodes a base64url path parameter, accepting both
// padded and unpadded forms.
func decodeCredentialID(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, ErrInvalidParam
	}
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, err
		}
	}
	return decoded, nil
}

// errorType labels an error for metrics without leaking detail.
func errorType(err error) string {
	switch {
	case passkey.IsVerificationFailed(err):
		return "verification"
	case passkey.IsChallengeNotFound(err):
		return "challenge_not_found"
	case passkey.IsChallengeExpired(err):
		return "challenge_expired"
	case passkey.IsDuplicateCredential(err):
		return "duplicate"
	case passkey.IsCredentialNotFound(err):
		return "not_found"
	case passkey.IsUserNotFound(err):
		return "user_not_found"
	default:
		return "internal"
	}
}
