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
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret: []byte("test-secret-0123456789abcdef"),
	}
}

func TestJWT_IssueAndAuthenticate(t *testing.T) {
	issuer, err := NewJWTIssuer(testJWTConfig())
	require.NoError(t, err)

	authenticator, err := NewJWTAuthenticator(testJWTConfig())
	require.NoError(t, err)

	user := passkey.NewUser("jwt@example.com", "JWT User", "")
	token, err := issuer.IssueToken(context.Background(), user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	req := httptest.NewRequest("GET", "/api/v1/passkeys", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	identity, err := authenticator.AuthenticateHTTP(req)
	require.NoError(t, err)
	require.NotNil(t, identity)

	assert.Equal(t, user.ID, identity.Subject)
	assert.Equal(t, "jwt@example.com", identity.Attributes["email"])
	assert.Equal(t, "JWT User", identity.Attributes["display_name"])
	assert.Equal(t, "jwt", identity.Attributes["auth_method"])
}

func TestJWT_RejectsInvalidTokens(t *testing.T) {
	authenticator, err := NewJWTAuthenticator(testJWTConfig())
	require.NoError(t, err)

	t.Run("no header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		_, err := authenticator.AuthenticateHTTP(req)
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		_, err := authenticator.AuthenticateHTTP(req)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewJWTIssuer(&JWTConfig{Secret: []byte("different-secret")})
		require.NoError(t, err)

		token, err := other.IssueToken(context.Background(), passkey.NewUser("x@example.com", "", ""))
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		_, err = authenticator.AuthenticateHTTP(req)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		cfg := testJWTConfig()
		cfg.ExpiresIn = -time.Minute
		expired, err := NewJWTIssuer(cfg)
		require.NoError(t, err)

		token, err := expired.IssueToken(context.Background(), passkey.NewUser("x@example.com", "", ""))
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		_, err = authenticator.AuthenticateHTTP(req)
		assert.Error(t, err)
	})
}

func TestJWT_ConfigValidation(t *testing.T) {
	_, err := NewJWTIssuer(nil)
	assert.Error(t, err)

	_, err = NewJWTIssuer(&JWTConfig{})
	assert.Error(t, err)

	_, err = NewJWTAuthenticator(&JWTConfig{})
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	identity := &Identity{Subject: "user-1"}

	ctx := WithIdentity(context.Background(), identity)
	assert.Equal(t, identity, GetIdentity(ctx))

	assert.Nil(t, GetIdentity(context.Background()))
}
