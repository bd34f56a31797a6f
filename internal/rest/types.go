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
	"encoding/base64"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// CredentialResponse is the client-facing view of a registered passkey.
// Byte strings are base64url encoded without padding, timestamps RFC 3339.
type CredentialResponse struct {
	ID         string   `json:"id"`
	PublicKey  string   `json:"publicKey"`
	Transports []string `json:"transports,omitempty"`
	CreatedAt  string   `json:"created_at"`
	LastUsed   string   `json:"last_used,omitempty"`
}

// ListCredentialsResponse represents the response for listing credentials.
type ListCredentialsResponse struct {
	Credentials []CredentialResponse `json:"credentials"`
	Total       int                  `json:"total"`
}

// RevokeCredentialResponse confirms a credential revocation.
type RevokeCredentialResponse struct {
	Revoked bool   `json:"revoked"`
	Message string `json:"message,omitempty"`
}

// LoginOptionsRequest identifies the account starting a login ceremony.
// An empty email requests discoverable credential options.
type LoginOptionsRequest struct {
	Email string `json:"email,omitempty"`
}

// LoginRequest carries the assertion completing a login ceremony. The
// credential is the raw PublicKeyCredential JSON produced by the client.
type LoginRequest struct {
	Email      string `json:"email,omitempty"`
	Credential string `json:"credential"`
}

// LoginResponse represents a successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// newCredentialResponse converts a stored credential to its API shape.
func newCredentialResponse(cred *passkey.Credential) CredentialResponse {
	resp := CredentialResponse{
		ID:        base64.RawURLEncoding.EncodeToString(cred.ID),
		PublicKey: base64.RawURLEncoding.EncodeToString(cred.PublicKey),
		CreatedAt: cred.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, t := range cred.Transports {
		resp.Transports = append(resp.Transports, string(t))
	}
	if cred.LastUsedAt != nil {
		resp.LastUsed = cred.LastUsedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
