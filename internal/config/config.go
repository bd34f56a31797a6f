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
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
)

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
	TLS       TLSConfig        `yaml:"tls"`
	Passkey   passkey.Config   `yaml:"passkey"`
	Auth      AuthConfig       `yaml:"auth"`
	RateLimit ratelimit.Config `yaml:"ratelimit"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Health    HealthConfig     `yaml:"health"`
	Storage   StorageConfig    `yaml:"storage"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TLSConfig controls TLS/SSL settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// TLS version bounds: TLS1.2, TLS1.3
	MinVersion string `yaml:"min_version"`
	MaxVersion string `yaml:"max_version"`
}

// AuthConfig controls session authentication for the gated API surface
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"` // noop, apikey, jwt

	// API Key authentication
	APIKeys map[string]APIKeyConfig `yaml:"api_keys,omitempty"` // key -> config mapping

	// JWT session tokens
	JWT *JWTConfig `yaml:"jwt,omitempty"`
}

// APIKeyConfig represents an API key and its associated identity
type APIKeyConfig struct {
	Subject     string                 `yaml:"subject"`
	Roles       []string               `yaml:"roles,omitempty"`
	Permissions []string               `yaml:"permissions,omitempty"`
	Claims      map[string]interface{} `yaml:"claims,omitempty"`
}

// JWTConfig controls JWT session token issuance and verification
type JWTConfig struct {
	Secret    string        `yaml:"secret"`
	Issuer    string        `yaml:"issuer"`
	Audience  []string      `yaml:"audience"`
	ExpiresIn time.Duration `yaml:"expires_in"`
}

// MetricsConfig controls the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HealthConfig controls health check endpoints
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// StorageConfig controls the credential store backend
type StorageConfig struct {
	Backend      string        `yaml:"backend"` // sqlite, memory
	Path         string        `yaml:"path"`    // sqlite database path
	ChallengeTTL time.Duration `yaml:"challenge_ttl"`
}

// Default returns a configuration with sensible development defaults.
// Production deployments should load from a YAML file instead.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8443,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Passkey: passkey.Config{
			RPDisplayName: "go-passkey",
			RPOrigins:     []string{"http://localhost:8443"},
		},
		Auth: AuthConfig{
			Enabled: true,
			Type:    "jwt",
		},
		RateLimit: ratelimit.Config{
			Enabled:           true,
			RequestsPerMinute: 60,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Enabled: true,
			Path:    "/health",
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    "passkey.db",
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// Read the config file
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Server settings
	if host := os.Getenv("PASSKEY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("PASSKEY_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_PORT value %q, using default %d: %v",
				portStr, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid PASSKEY_PORT value %q (out of range 1-65535), using default %d",
				portStr, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	// Logging
	if level := os.Getenv("PASSKEY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("PASSKEY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Relying party settings
	if rpID := os.Getenv("PASSKEY_RP_ID"); rpID != "" {
		cfg.Passkey.RPID = rpID
	}
	if origins := os.Getenv("PASSKEY_RP_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			cfg.Passkey.RPOrigins = trimmed
		}
	}

	// Storage
	if dbPath := os.Getenv("PASSKEY_DB_PATH"); dbPath != "" {
		cfg.Storage.Path = dbPath
	}

	// JWT secret
	if secret := os.Getenv("PASSKEY_JWT_SECRET"); secret != "" {
		if cfg.Auth.JWT == nil {
			cfg.Auth.JWT = &JWTConfig{}
		}
		cfg.Auth.JWT.Secret = secret
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server port
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	// Validate TLS settings
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	// Validate relying party settings
	c.Passkey.SetDefaults()
	if err := c.Passkey.Validate(); err != nil {
		return fmt.Errorf("invalid passkey configuration: %w", err)
	}

	// Validate storage
	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the sqlite backend")
		}
	case "memory":
	case "":
		return fmt.Errorf("storage backend must be specified")
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	// Validate auth settings
	if c.Auth.Enabled {
		switch c.Auth.Type {
		case "jwt", "":
			if c.Auth.JWT == nil || c.Auth.JWT.Secret == "" {
				return fmt.Errorf("auth.jwt.secret is required for jwt authentication")
			}
		case "apikey":
			if len(c.Auth.APIKeys) == 0 {
				return fmt.Errorf("auth.api_keys is required for apikey authentication")
			}
		case "noop":
		default:
			return fmt.Errorf("unknown auth type: %s", c.Auth.Type)
		}
	}

	return nil
}
