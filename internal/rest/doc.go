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

// Package rest implements the HTTP API for the passkey service.
//
// The API is served under /api/v1 and splits into two surfaces:
//
// Credential management (session gate required):
//
//	GET    /api/v1/passkeys/registration/options  begin a registration ceremony
//	POST   /api/v1/passkeys/registration          finish a registration ceremony (201)
//	GET    /api/v1/passkeys                       list the caller's credentials
//	DELETE /api/v1/passkeys/{credentialID}        revoke one of the caller's credentials
//
// Login ceremonies (public, rate limited):
//
//	POST   /api/v1/login/options  begin a login ceremony
//	POST   /api/v1/login          finish a login ceremony, returns a session token
//
// Unauthenticated requests to gated endpoints receive 401 with a generic
// body and never touch the credential store. Ceremony verification
// failures, consumed challenges and expired challenges all collapse into
// a generic 400 so clients cannot distinguish why a response was
// rejected. Duplicate credential IDs map to 409 and revoking an unknown
// (or another account's) credential maps to 404.
//
// Operational endpoints outside /api/v1:
//
//	GET /health          basic health and version
//	GET /health/live     Kubernetes liveness probe
//	GET /health/ready    Kubernetes readiness probe (runs registered checks)
//	GET /health/startup  Kubernetes startup probe
//	GET /metrics         Prometheus metrics (when enabled)
//
// The middleware chain is recovery, correlation ID, request logging,
// metrics, CORS, then per-route rate limiting and authentication.
package rest
