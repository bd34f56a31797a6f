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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeremyhahn/go-passkey/pkg/auth"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// headerAuthenticator authenticates requests by the X-Test-User header.
// It stands in for the session gate in handler tests.
type headerAuthenticator struct{}

func (a *headerAuthenticator) AuthenticateHTTP(r *http.Request) (*auth.Identity, error) {
	subject := r.Header.Get("X-Test-User")
	if subject == "" {
		return nil, fmt.Errorf("no session")
	}
	return &auth.Identity{Subject: subject}, nil
}

func (a *headerAuthenticator) Name() string {
	return "test-header"
}

type testEnv struct {
	server *Server
	svc    *passkey.Service
	users  *passkey.MemoryUserStore
	creds  *passkey.MemoryCredentialStore
}

func newTestEnv(t *testing.T, cfgFns ...func(*Config)) *testEnv {
	t.Helper()

	users := passkey.NewMemoryUserStore()
	creds := passkey.NewMemoryCredentialStore()

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config: &passkey.Config{
			RPID:          "example.com",
			RPDisplayName: "Example Corp",
			RPOrigins:     []string{"https://example.com"},
		},
		UserStore:       users,
		ChallengeStore:  passkey.NewMemoryChallengeStore(),
		CredentialStore: creds,
	})
	require.NoError(t, err)

	cfg := &Config{
		Service:       svc,
		Authenticator: &headerAuthenticator{},
	}
	for _, fn := range cfgFns {
		fn(cfg)
	}

	server, err := NewServer(cfg)
	require.NoError(t, err)

	return &testEnv{server: server, svc: svc, users: users, creds: creds}
}

// do executes a request against the router without a network listener.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func seedUser(t *testing.T, users *passkey.MemoryUserStore, email string) *passkey.User {
	t.Helper()

	user := passkey.NewUser(email, "Test User", "Tester")
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)

	_, err = NewServer(&Config{})
	assert.Error(t, err)
}

func TestNewServer_Defaults(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, 8443, env.server.Port())
	assert.Equal(t, "1.0.0", env.server.handlers.Version)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Version = "2.1.0"
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "2.1.0", resp.Version)
}

func TestHealthProbes(t *testing.T) {
	env := newTestEnv(t)
	checker := health.NewChecker()
	env.server.SetHealthChecker(checker)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Startup fails until the service is marked started.
	rec = env.do(httptest.NewRequest(http.MethodGet, "/health/startup", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	checker.MarkStarted()

	rec = env.do(httptest.NewRequest(http.MethodGet, "/health/startup", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// A failing readiness check flips the probe to 503.
	checker.RegisterCheck("store", func(ctx context.Context) health.CheckResult {
		return health.CheckResult{Status: health.StatusUnhealthy, Error: "down"}
	})
	rec = env.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGatedEndpointsRequireSession(t *testing.T) {
	env := newTestEnv(t)

	requests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/passkeys/registration/options"},
		{http.MethodPost, "/api/v1/passkeys/registration"},
		{http.MethodGet, "/api/v1/passkeys"},
		{http.MethodDelete, "/api/v1/passkeys/AAAA"},
	}

	for _, tt := range requests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := env.do(httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, http.StatusUnauthorized, rec.Code)

			// The error body is generic, no internals leak.
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, ErrUnauthorized.Error(), resp.Error)
		})
	}

	// Login endpoints stay public.
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/login/options", nil))
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MetricsPath = "/metrics"
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           true,
		RequestsPerMinute: 1,
		Burst:             1,
	})
	defer limiter.Stop()

	env := newTestEnv(t, func(cfg *Config) {
		cfg.RateLimiter = limiter
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/login/options", nil)
	req.RemoteAddr = "10.1.2.3:40000"
	rec := env.do(req)
	require.NotEqual(t, http.StatusTooManyRequests, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/login/options", nil)
	req.RemoteAddr = "10.1.2.3:40001"
	rec = env.do(req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Gated routes are not throttled by the login limiter.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/passkeys", nil)
	req.RemoteAddr = "10.1.2.3:40002"
	req.Header.Set("X-Test-User", "someone")
	rec = env.do(req)
	assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodOptions, "/api/v1/login/options", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCorrelationIDHeader(t *testing.T) {
	env := newTestEnv(t)

	// A provided correlation ID is echoed back.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "test-id-42")
	rec := env.do(req)
	assert.Equal(t, "test-id-42", rec.Header().Get("X-Correlation-ID"))

	// Otherwise one is generated.
	rec = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestStop(t *testing.T) {
	env := newTestEnv(t)

	// Stop before Start is a clean no-op shutdown.
	require.NoError(t, env.server.Stop(context.Background()))
}
