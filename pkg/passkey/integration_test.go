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

package passkey

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryUserStore, *MemoryCredentialStore) {
	t.Helper()

	users := NewMemoryUserStore()
	creds := NewMemoryCredentialStore()

	svc, err := NewService(ServiceParams{
		Config: &Config{
			RPID:          "example.com",
			RPDisplayName: "Example Corp",
			RPOrigins:     []string{"https://example.com"},
		},
		UserStore:       users,
		ChallengeStore:  NewMemoryChallengeStore(),
		CredentialStore: creds,
	})
	require.NoError(t, err)

	return svc, users, creds
}

func seedUser(t *testing.T, users *MemoryUserStore, email string) *User {
	t.Helper()

	user := NewUser(email, "Test User", "Tester")
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func testRelyingParty(svc *Service) virtualwebauthn.RelyingParty {
	return virtualwebauthn.RelyingParty{
		Name:   svc.Config().RPDisplayName,
		ID:     svc.Config().RPID,
		Origin: svc.Config().RPOrigins[0],
	}
}

// attestFor runs the client half of a registration ceremony against the
// issued options and returns the parsed attestation response.
func attestFor(t *testing.T, rp virtualwebauthn.RelyingParty, authenticator virtualwebauthn.Authenticator, cred virtualwebauthn.Credential, options *protocol.CredentialCreation) *protocol.ParsedCredentialCreationData {
	t.Helper()

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)

	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	attestation := virtualwebauthn.CreateAttestationResponse(rp, authenticator, cred, *parsedOptions)

	parsed, err := parseAttestationResponse(attestation)
	require.NoError(t, err)
	return parsed
}

// assertFor runs the client half of a login ceremony against the issued
// options and returns the parsed assertion response.
func assertFor(t *testing.T, rp virtualwebauthn.RelyingParty, authenticator virtualwebauthn.Authenticator, cred virtualwebauthn.Credential, options *protocol.CredentialAssertion) *protocol.ParsedCredentialAssertionData {
	t.Helper()

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)

	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertion := virtualwebauthn.CreateAssertionResponse(rp, authenticator, cred, *parsedOptions)

	parsed, err := parseAssertionResponse(assertion)
	require.NoError(t, err)
	return parsed
}

// registerCredential runs a complete registration ceremony for the user.
func registerCredential(t *testing.T, svc *Service, user *User, authenticator *virtualwebauthn.Authenticator, cred virtualwebauthn.Credential) *Credential {
	t.Helper()
	ctx := context.Background()

	options, err := svc.BeginRegistration(ctx, user.ID)
	require.NoError(t, err)

	parsed := attestFor(t, testRelyingParty(svc), *authenticator, cred, options)

	registered, err := svc.FinishRegistration(ctx, user.ID, parsed)
	require.NoError(t, err)

	authenticator.AddCredential(cred)
	return registered
}

func TestIntegration_RegistrationCeremony(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t)
	user := seedUser(t, users, "testuser@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	options, err := svc.BeginRegistration(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, options)

	// Verify options structure
	assert.Equal(t, "example.com", options.Response.RelyingParty.ID)
	assert.Equal(t, "Example Corp", options.Response.RelyingParty.Name)
	assert.Equal(t, "testuser@example.com", options.Response.User.Name)
	assert.GreaterOrEqual(t, len(options.Response.Challenge), 16)
	assert.Equal(t, protocol.PreferNoAttestation, options.Response.Attestation)
	assert.Equal(t, protocol.VerificationPreferred, options.Response.AuthenticatorSelection.UserVerification)

	parsed := attestFor(t, testRelyingParty(svc), authenticator, credential, options)

	registered, err := svc.FinishRegistration(ctx, user.ID, parsed)
	require.NoError(t, err)
	require.NotNil(t, registered)

	assert.Equal(t, user.ID, registered.UserID)
	assert.NotEmpty(t, registered.ID)
	assert.NotEmpty(t, registered.PublicKey)
	assert.Nil(t, registered.LastUsedAt)

	creds, err := svc.ListCredentials(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, registered.ID, creds[0].ID)
}

func TestIntegration_ReplayedAttestationRejected(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t)
	user := seedUser(t, users, "replay@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	options, err := svc.BeginRegistration(ctx, user.ID)
	require.NoError(t, err)

	parsed := attestFor(t, testRelyingParty(svc), authenticator, credential, options)

	_, err = svc.FinishRegistration(ctx, user.ID, parsed)
	require.NoError(t, err)

	// The challenge was consumed, so replaying the same response fails
	// without touching the store.
	_, err = svc.FinishRegistration(ctx, user.ID, parsed)
	require.Error(t, err)
	assert.True(t, IsChallengeNotFound(err))

	creds, err := svc.ListCredentials(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestIntegration_DuplicateCredentialRejected(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t)
	user := seedUser(t, users, "dup@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	registerCredential(t, svc, user, &authenticator, credential)

	// A fresh ceremony presenting the same credential ID must be refused
	// even though the attestation itself verifies.
	options, err := svc.BeginRegistration(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, options.Response.CredentialExcludeList, 1)

	parsed := attestFor(t, testRelyingParty(svc), authenticator, credential, options)

	_, err = svc.FinishRegistration(ctx, user.ID, parsed)
	require.Error(t, err)
	assert.True(t, IsDuplicateCredential(err))

	creds, err := svc.ListCredentials(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestIntegration_ForgedOriginRejected(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t)
	user := seedUser(t, users, "origin@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	options, err := svc.BeginRegistration(ctx, user.ID)
	require.NoError(t, err)

	// Client data minted for a different origin.
	evilRP := virtualwebauthn.RelyingParty{
		Name:   "Example Corp",
		ID:     "example.com",
		Origin: "https://evil.example.net",
	}
	parsed := attestFor(t, evilRP, authenticator, credential, options)

	_, err = svc.FinishRegistration(ctx, user.ID, parsed)
	require.Error(t, err)
	assert.True(t, IsVerificationFailed(err))

	creds, err := svc.ListCredentials(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestIntegration_MultipleCredentials(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t)
	user := seedUser(t, users, "multicred@example.com")

	auth1 := virtualwebauthn.NewAuthenticator()
	cred1 := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	auth2 := virtualwebauthn.NewAuthenticator()
	cred2 := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	registerCredential(t, svc, user, &auth1, cred1)

	// The second ceremony's exclude list carries the first credential.
	options, err := svc.BeginRegistration(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, options.Response.CredentialExcludeList, 1)

	parsed := attestFor(t, testRelyingParty(svc), auth2, cred2, options)

	_, err = svc.FinishRegistration(ctx, user.ID, parsed)
	require.NoError(t, err)

	creds, err := svc.ListCredentials(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, creds, 2)
}

func TestIntegration_LoginCeremony(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t)
	user := seedUser(t, users, "login@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, user, &authenticator, credential)

	options, err := svc.BeginLogin(ctx, user.Email)
	require.NoError(t, err)
	require.NotNil(t, options)
	assert.Equal(t, "example.com", options.Response.RelyingPartyID)
	assert.NotEmpty(t, options.Response.Challenge)

	credential.Counter++
	parsed := assertFor(t, testRelyingParty(svc), authenticator, credential, options)

	token, loggedIn, err := svc.FinishLogin(ctx, user.Email, parsed)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotNil(t, loggedIn)
	assert.Equal(t, user.ID, loggedIn.ID)

	// Sign counter and last-used timestamp advance on login.
	creds, err := svc.ListCredentials(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, uint32(1), creds[0].Authenticator.SignCount)
	require.NotNil(t, creds[0].LastUsedAt)
}

func TestIntegration_DiscoverableLoginCeremony(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t)
	user := seedUser(t, users, "discoverable@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, user, &authenticator, credential)

	options, err := svc.BeginLogin(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, options.Response.AllowedCredentials)

	// Discoverable assertions carry the user handle so the server can
	// resolve the account.
	discoverableAuth := virtualwebauthn.NewAuthenticatorWithOptions(virtualwebauthn.AuthenticatorOptions{
		UserHandle: []byte(user.ID),
	})
	discoverableAuth.AddCredential(credential)

	credential.Counter++
	parsed := assertFor(t, testRelyingParty(svc), discoverableAuth, credential, options)

	token, loggedIn, err := svc.FinishLogin(ctx, "", parsed)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, user.Email, loggedIn.Email)
}

func TestIntegration_LoginReplayRejected(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t)
	user := seedUser(t, users, "loginreplay@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, user, &authenticator, credential)

	options, err := svc.BeginLogin(ctx, user.Email)
	require.NoError(t, err)

	credential.Counter++
	parsed := assertFor(t, testRelyingParty(svc), authenticator, credential, options)

	_, _, err = svc.FinishLogin(ctx, user.Email, parsed)
	require.NoError(t, err)

	_, _, err = svc.FinishLogin(ctx, user.Email, parsed)
	require.Error(t, err)
	assert.True(t, IsChallengeNotFound(err))
}

func TestIntegration_TokenIssuer(t *testing.T) {
	ctx := context.Background()

	users := NewMemoryUserStore()
	svc, err := NewService(ServiceParams{
		Config: &Config{
			RPID:          "example.com",
			RPDisplayName: "Example Corp",
			RPOrigins:     []string{"https://example.com"},
		},
		UserStore:       users,
		ChallengeStore:  NewMemoryChallengeStore(),
		CredentialStore: NewMemoryCredentialStore(),
		TokenIssuer:     &testTokenIssuer{prefix: "test-jwt-"},
	})
	require.NoError(t, err)

	user := seedUser(t, users, "jwt@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, user, &authenticator, credential)

	options, err := svc.BeginLogin(ctx, user.Email)
	require.NoError(t, err)

	credential.Counter++
	parsed := assertFor(t, testRelyingParty(svc), authenticator, credential, options)

	token, _, err := svc.FinishLogin(ctx, user.Email, parsed)
	require.NoError(t, err)
	assert.Equal(t, "test-jwt-"+user.ID, token)
}

// testTokenIssuer is a mock session token issuer.
type testTokenIssuer struct {
	prefix string
}

func (g *testTokenIssuer) IssueToken(ctx context.Context, user *User) (string, error) {
	return g.prefix + user.ID, nil
}

// parseAttestationResponse parses a virtual authenticator attestation
// response into the format expected by go-webauthn.
func parseAttestationResponse(attestation string) (*protocol.ParsedCredentialCreationData, error) {
	var ccr protocol.CredentialCreationResponse
	if err := json.Unmarshal([]byte(attestation), &ccr); err != nil {
		return nil, err
	}
	return ccr.Parse()
}

// parseAssertionResponse parses a virtual authenticator assertion
// response into the format expected by go-webauthn.
func parseAssertionResponse(assertion string) (*protocol.ParsedCredentialAssertionData, error) {
	var car protocol.CredentialAssertionResponse
	if err := json.Unmarshal([]byte(assertion), &car); err != nil {
		return nil, err
	}
	return car.Parse()
}
