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

package config

import (
	"fmt"

	"github.com/jeremyhahn/go-passkey/pkg/auth"
)

// CreateAuthenticator creates an authenticator from the configuration
func (cfg *AuthConfig) CreateAuthenticator() (auth.Authenticator, error) {
	if !cfg.Enabled {
		return auth.NewNoOpAuthenticator(), nil
	}

	switch cfg.Type {
	case "noop", "none":
		return auth.NewNoOpAuthenticator(), nil

	case "apikey":
		return cfg.createAPIKeyAuthenticator()

	case "jwt", "":
		authenticator, err := auth.NewJWTAuthenticator(cfg.jwtConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT authenticator: %w", err)
		}
		return authenticator, nil

	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}

// CreateTokenIssuer creates the session token issuer used after a
// successful login ceremony. Returns nil when JWT auth is not configured;
// the service falls back to returning the user ID as an opaque token.
func (cfg *AuthConfig) CreateTokenIssuer() (*auth.JWTIssuer, error) {
	if cfg.JWT == nil || cfg.JWT.Secret == "" {
		return nil, nil
	}

	issuer, err := auth.NewJWTIssuer(cfg.jwtConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT issuer: %w", err)
	}
	return issuer, nil
}

// jwtConfig converts the YAML JWT section to the auth package config.
func (cfg *AuthConfig) jwtConfig() *auth.JWTConfig {
	jwtCfg := &auth.JWTConfig{}
	if cfg.JWT != nil {
		jwtCfg.Secret = []byte(cfg.JWT.Secret)
		jwtCfg.Issuer = cfg.JWT.Issuer
		jwtCfg.Audience = cfg.JWT.Audience
		jwtCfg.ExpiresIn = cfg.JWT.ExpiresIn
	}
	return jwtCfg
}

// createAPIKeyAuthenticator creates an API key authenticator from config
func (cfg *AuthConfig) createAPIKeyAuthenticator() (auth.Authenticator, error) {
	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("no API keys configured")
	}

	// Convert config API keys to authenticator format
	keys := make(map[string]*auth.Identity)
	for apiKey, keyConfig := range cfg.APIKeys {
		identity := &auth.Identity{
			Subject:    keyConfig.Subject,
			Claims:     make(map[string]interface{}),
			Attributes: make(map[string]string),
		}

		// Add roles
		if len(keyConfig.Roles) > 0 {
			identity.Claims["roles"] = keyConfig.Roles
		}

		// Add permissions
		if len(keyConfig.Permissions) > 0 {
			identity.Claims["permissions"] = keyConfig.Permissions
		}

		// Add additional claims
		for k, v := range keyConfig.Claims {
			identity.Claims[k] = v
		}

		keys[apiKey] = identity
	}

	return auth.NewAPIKeyAuthenticator(&auth.APIKeyConfig{
		Keys: keys,
	}), nil
}
