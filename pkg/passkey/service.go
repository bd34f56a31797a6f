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
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Service implements the passkey credential lifecycle: registration
// ceremonies, credential listing and revocation, and login ceremonies.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	users      UserStore
	challenges ChallengeStore
	creds      CredentialStore
	tokens     TokenIssuer // optional
	locks      *userLocks
	configured bool
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Config is the passkey configuration (required).
	Config *Config

	// UserStore resolves accounts provisioned by the identity system (required).
	UserStore UserStore

	// ChallengeStore holds pending ceremony state (required).
	ChallengeStore ChallengeStore

	// CredentialStore is the credential persistence layer (required).
	CredentialStore CredentialStore

	// TokenIssuer is an optional session token minter for post-login tokens.
	// If nil, FinishLogin returns the user ID as the token.
	TokenIssuer TokenIssuer
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.UserStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.ChallengeStore == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		users:      params.UserStore,
		challenges: params.ChallengeStore,
		creds:      params.CredentialStore,
		tokens:     params.TokenIssuer,
		locks:      newUserLocks(),
		configured: true,
	}, nil
}

// registrationKey namespaces registration ceremony state. One entry per
// user, so starting a new ceremony invalidates the previous one.
func registrationKey(userID string) string {
	return "register:" + userID
}

// loginKey namespaces login ceremony state. For identified logins the
// suffix is the user ID, for discoverable logins the challenge itself.
func loginKey(suffix string) string {
	return "login:" + suffix
}

// BeginRegistration starts a registration ceremony for an existing
// authenticated user. Returns the credential creation options to send
// to the client. The user must already exist; registration never
// provisions accounts.
func (s *Service) BeginRegistration(ctx context.Context, userID string) (*protocol.CredentialCreation, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	existing, err := s.creds.GetByUserID(ctx, userID)
	if err != nil {
		return nil, WrapError("get credentials", err)
	}

	// Exclude already-registered credentials so the authenticator
	// refuses to create a second key for this RP.
	excludeList := make([]protocol.CredentialDescriptor, len(existing))
	for i, cred := range existing {
		excludeList[i] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
			Transport:    cred.Transports,
		}
	}

	options, session, err := s.webauthn.BeginRegistration(
		&ceremonyUser{user: user, credentials: existing},
		webauthn.WithExclusions(excludeList),
	)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	if err := s.challenges.Put(ctx, registrationKey(userID), session); err != nil {
		return nil, WrapError("save challenge", err)
	}

	return options, nil
}

// FinishRegistration completes a registration ceremony. The outstanding
// challenge is consumed whether or not verification succeeds, so a
// failed attempt requires a fresh BeginRegistration. Returns the newly
// persisted credential.
func (s *Service) FinishRegistration(ctx context.Context, userID string, response *protocol.ParsedCredentialCreationData) (*Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	session, err := s.challenges.Take(ctx, registrationKey(userID))
	if err != nil {
		return nil, WrapError("take challenge", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	existing, err := s.creds.GetByUserID(ctx, userID)
	if err != nil {
		return nil, WrapError("get credentials", err)
	}

	credential, err := s.webauthn.CreateCredential(
		&ceremonyUser{user: user, credentials: existing},
		*session,
		response,
	)
	if err != nil {
		return nil, verificationError("verify attestation", err)
	}

	cred := NewCredential(userID, credential)
	if err := s.creds.Save(ctx, cred); err != nil {
		return nil, WrapError("save credential", err)
	}

	return cred, nil
}

// ListCredentials returns the caller's registered credentials ordered
// by creation time.
func (s *Service) ListCredentials(ctx context.Context, userID string) ([]*Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, WrapError("get user", err)
	}

	creds, err := s.creds.GetByUserID(ctx, userID)
	if err != nil {
		return nil, WrapError("get credentials", err)
	}
	return creds, nil
}

// RevokeCredential removes one of the caller's credentials. A
// credential owned by another user is reported as not found so callers
// cannot probe other accounts' credential IDs.
func (s *Service) RevokeCredential(ctx context.Context, userID string, credID []byte) error {
	if !s.configured {
		return ErrNotConfigured
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	cred, err := s.creds.GetByCredentialID(ctx, credID)
	if err != nil {
		return WrapError("get credential", err)
	}
	if cred.UserID != userID {
		return WrapError("get credential", ErrCredentialNotFound)
	}

	return WrapError("delete credential", s.creds.Delete(ctx, credID))
}

// BeginLogin starts a login ceremony. With an email it runs the
// user-identified flow; with an empty email it returns options for
// discoverable credentials (the client's authenticator picks the account).
func (s *Service) BeginLogin(ctx context.Context, email string) (*protocol.CredentialAssertion, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	if email == "" {
		options, session, err := s.webauthn.BeginDiscoverableLogin()
		if err != nil {
			return nil, WrapError("begin discoverable login", err)
		}
		if err := s.challenges.Put(ctx, loginKey(session.Challenge), session); err != nil {
			return nil, WrapError("save challenge", err)
		}
		return options, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	creds, err := s.creds.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, WrapError("get credentials", err)
	}
	if len(creds) == 0 {
		return nil, WrapError("begin login", ErrNoCredentials)
	}

	options, session, err := s.webauthn.BeginLogin(&ceremonyUser{user: user, credentials: creds})
	if err != nil {
		return nil, WrapError("begin login", err)
	}

	if err := s.challenges.Put(ctx, loginKey(user.ID), session); err != nil {
		return nil, WrapError("save challenge", err)
	}

	return options, nil
}

// FinishLogin completes a login ceremony. With an empty email the
// discoverable flow resolves the user from the assertion's user handle.
// On success the credential's sign counter and last-used timestamp are
// updated and a session token is returned.
func (s *Service) FinishLogin(ctx context.Context, email string, response *protocol.ParsedCredentialAssertionData) (string, *User, error) {
	if !s.configured {
		return "", nil, ErrNotConfigured
	}

	var user *User
	var credential *webauthn.Credential

	if email == "" {
		// The discoverable session is keyed by its challenge, which the
		// client echoes back in the collected client data.
		session, err := s.challenges.Take(ctx, loginKey(response.Response.CollectedClientData.Challenge))
		if err != nil {
			return "", nil, WrapError("take challenge", err)
		}

		credential, err = s.webauthn.ValidateDiscoverableLogin(s.discoverableUserHandler(ctx), *session, response)
		if err != nil {
			return "", nil, verificationError("verify assertion", err)
		}

		cred, err := s.creds.GetByCredentialID(ctx, credential.ID)
		if err != nil {
			return "", nil, WrapError("get credential", err)
		}
		user, err = s.users.GetByID(ctx, cred.UserID)
		if err != nil {
			return "", nil, WrapError("get user", err)
		}
	} else {
		var err error
		user, err = s.users.GetByEmail(ctx, email)
		if err != nil {
			return "", nil, WrapError("get user", err)
		}

		session, err := s.challenges.Take(ctx, loginKey(user.ID))
		if err != nil {
			return "", nil, WrapError("take challenge", err)
		}

		creds, err := s.creds.GetByUserID(ctx, user.ID)
		if err != nil {
			return "", nil, WrapError("get credentials", err)
		}

		credential, err = s.webauthn.ValidateLogin(&ceremonyUser{user: user, credentials: creds}, *session, response)
		if err != nil {
			return "", nil, verificationError("verify assertion", err)
		}
	}

	if err := s.recordCredentialUse(ctx, user.ID, credential); err != nil {
		return "", nil, err
	}

	token, err := s.issueToken(ctx, user)
	if err != nil {
		return "", nil, WrapError("issue token", err)
	}

	return token, user, nil
}

// recordCredentialUse persists the post-login sign counter and last-used
// timestamp under the owner's lock.
func (s *Service) recordCredentialUse(ctx context.Context, userID string, credential *webauthn.Credential) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cred, err := s.creds.GetByCredentialID(ctx, credential.ID)
	if err != nil {
		return WrapError("get credential for update", err)
	}

	now := time.Now().UTC()
	cred.Authenticator.SignCount = credential.Authenticator.SignCount
	cred.Authenticator.CloneWarning = credential.Authenticator.CloneWarning
	cred.LastUsedAt = &now

	return WrapError("update credential", s.creds.Update(ctx, cred))
}

// GetUser retrieves a user by account ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	return s.users.GetByID(ctx, userID)
}

// GetUserByEmail retrieves a user by email address.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	return s.users.GetByEmail(ctx, email)
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// issueToken creates a session token for the authenticated user.
func (s *Service) issueToken(ctx context.Context, user *User) (string, error) {
	if s.tokens != nil {
		return s.tokens.IssueToken(ctx, user)
	}
	return user.ID, nil
}

// discoverableUserHandler resolves the account behind a discoverable
// credential from its user handle.
func (s *Service) discoverableUserHandler(ctx context.Context) func(rawID, userHandle []byte) (webauthn.User, error) {
	return func(rawID, userHandle []byte) (webauthn.User, error) {
		user, err := s.users.GetByID(ctx, string(userHandle))
		if err != nil {
			return nil, err
		}
		creds, err := s.creds.GetByUserID(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		return &ceremonyUser{user: user, credentials: creds}, nil
	}
}

// verificationError folds a library verification failure into
// ErrVerificationFailed, keeping the cause for server-side logs only.
func verificationError(op string, err error) error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %v", ErrVerificationFailed, err)}
}
