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

package auth

import (
	"context"
	"net/http"
)

// Identity represents an authenticated user
type Identity struct {
	// Subject is the unique identifier for the authenticated entity (user ID)
	Subject string

	// Claims contains additional authenticated information
	Claims map[string]interface{}

	// Attributes contains metadata about the authentication (auth method, etc.)
	Attributes map[string]string
}

// Authenticator is the interface for authentication adapters.
// Applications implement this interface to integrate their session system.
type Authenticator interface {
	// AuthenticateHTTP authenticates an HTTP request and returns an identity.
	// Returns an error if the request carries no valid session.
	AuthenticateHTTP(r *http.Request) (*Identity, error)

	// Name returns the authenticator name for logging/debugging
	Name() string
}

// ContextKey is the type for context keys used by the auth package
type ContextKey string

const (
	// IdentityContextKey is the context key for storing authenticated identity
	IdentityContextKey ContextKey = "auth.identity"
)

// GetIdentity extracts the identity from a context
func GetIdentity(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(IdentityContextKey).(*Identity); ok {
		return identity
	}
	return nil
}

// WithIdentity adds an identity to a context
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}
