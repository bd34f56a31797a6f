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
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// JWTConfig configures the JWT issuer and authenticator pair.
type JWTConfig struct {
	// Secret is the HMAC signing secret (required)
	Secret []byte
	// Issuer is the issuer claim (default: "go-passkey")
	Issuer string
	// Audience is the audience claim (default: ["go-passkey"])
	Audience []string
	// ExpiresIn is how long tokens are valid (default: 24 hours)
	ExpiresIn time.Duration
	// HeaderName is the HTTP header carrying the token (default: "Authorization")
	HeaderName string
}

func (c *JWTConfig) setDefaults() error {
	if len(c.Secret) == 0 {
		return fmt.Errorf("secret is required")
	}
	if c.Issuer == "" {
		c.Issuer = "go-passkey"
	}
	if len(c.Audience) == 0 {
		c.Audience = []string{"go-passkey"}
	}
	if c.ExpiresIn == 0 {
		c.ExpiresIn = 24 * time.Hour
	}
	if c.HeaderName == "" {
		c.HeaderName = "Authorization"
	}
	return nil
}

// JWTIssuer mints session tokens after a successful login ceremony.
// It implements passkey.TokenIssuer.
type JWTIssuer struct {
	config *JWTConfig
}

// NewJWTIssuer creates a new JWT session token issuer.
func NewJWTIssuer(config *JWTConfig) (*JWTIssuer, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.setDefaults(); err != nil {
		return nil, err
	}
	return &JWTIssuer{config: config}, nil
}

// IssueToken creates a signed session token for the authenticated user.
func (g *JWTIssuer) IssueToken(ctx context.Context, user *passkey.User) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"iss":   g.config.Issuer,
		"aud":   g.config.Audience,
		"sub":   user.ID,
		"iat":   now.Unix(),
		"exp":   now.Add(g.config.ExpiresIn).Unix(),
		"nbf":   now.Unix(),
		"email": user.Email,
	}
	if user.Name != "" {
		claims["name"] = user.Name
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.config.Secret)
}

// JWTAuthenticator authenticates requests using bearer JWT session tokens.
type JWTAuthenticator struct {
	config *JWTConfig
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(config *JWTConfig) (*JWTAuthenticator, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.setDefaults(); err != nil {
		return nil, err
	}
	return &JWTAuthenticator{config: config}, nil
}

// AuthenticateHTTP authenticates an HTTP request using a bearer JWT token.
func (a *JWTAuthenticator) AuthenticateHTTP(r *http.Request) (*Identity, error) {
	authHeader := r.Header.Get(a.config.HeaderName)
	if authHeader == "" {
		return nil, fmt.Errorf("no authorization header")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" {
		return nil, fmt.Errorf("no token provided")
	}

	identity, err := a.validateToken(tokenString)
	if err != nil {
		return nil, err
	}

	identity.Attributes["auth_method"] = "jwt"
	identity.Attributes["remote_addr"] = r.RemoteAddr

	return identity, nil
}

// validateToken parses and validates a JWT token.
func (a *JWTAuthenticator) validateToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (interface{}, error) {
			return a.config.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.config.Issuer),
		jwt.WithAudience(a.config.Audience[0]),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("missing subject claim")
	}

	identity := &Identity{
		Subject:    sub,
		Claims:     make(map[string]interface{}),
		Attributes: make(map[string]string),
	}
	for k, v := range claims {
		identity.Claims[k] = v
	}

	if email, ok := claims["email"].(string); ok {
		identity.Attributes["email"] = email
	}
	if name, ok := claims["name"].(string); ok {
		identity.Attributes["display_name"] = name
	}

	return identity, nil
}

// Name returns the authenticator name.
func (a *JWTAuthenticator) Name() string {
	return "jwt"
}
