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

	"github.com/go-webauthn/webauthn/webauthn"
)

// UserStore is the read side of the surrounding identity system plus
// the provisioning operations used by admin tooling. The registration
// ceremony only ever reads.
type UserStore interface {
	// GetByID retrieves a user by account ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, userID string) (*User, error)

	// GetByEmail retrieves a user by email address.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create provisions a new user.
	// Returns ErrUserAlreadyExists when the ID or email is taken.
	Create(ctx context.Context, user *User) error

	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]*User, error)

	// Delete removes a user by account ID.
	// Returns ErrUserNotFound if the user does not exist.
	Delete(ctx context.Context, userID string) error
}

// ChallengeStore holds server-side ceremony state between the begin and
// finish calls. Entries are single-use: Take consumes. Registration
// ceremonies are keyed per user, so issuing a new challenge replaces
// any outstanding one.
type ChallengeStore interface {
	// Put stores ceremony state under key, replacing any existing entry.
	// The entry expires at data.Expires.
	Put(ctx context.Context, key string, data *webauthn.SessionData) error

	// Take retrieves and removes ceremony state.
	// Returns ErrChallengeNotFound when no entry exists and
	// ErrChallengeExpired when the entry's TTL has elapsed. The entry
	// is removed in every case.
	Take(ctx context.Context, key string) (*webauthn.SessionData, error)

	// Delete removes ceremony state without reading it.
	Delete(ctx context.Context, key string) error
}

// CredentialStore manages passkey credential persistence. Implementations
// must enforce global uniqueness of the credential ID.
type CredentialStore interface {
	// Save stores a new credential.
	// Returns ErrDuplicateCredential when the credential ID is already
	// registered to any user.
	Save(ctx context.Context, cred *Credential) error

	// GetByUserID retrieves all credentials for a user ordered by
	// creation time. Returns an empty slice if the user has none.
	GetByUserID(ctx context.Context, userID string) ([]*Credential, error)

	// GetByCredentialID retrieves a credential by its ID.
	// Returns ErrCredentialNotFound if the credential does not exist.
	GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error)

	// Update updates an existing credential (sign counter, last used).
	// Returns ErrCredentialNotFound if the credential does not exist.
	Update(ctx context.Context, cred *Credential) error

	// Delete removes a credential by its ID.
	// Returns ErrCredentialNotFound if the credential does not exist.
	Delete(ctx context.Context, credID []byte) error

	// DeleteByUserID removes all credentials for a user.
	DeleteByUserID(ctx context.Context, userID string) error
}

// TokenIssuer mints a session token after a successful login ceremony.
// If not provided, FinishLogin returns the user ID as the token.
type TokenIssuer interface {
	// IssueToken creates a session token for the authenticated user.
	IssueToken(ctx context.Context, user *User) (string, error)
}
