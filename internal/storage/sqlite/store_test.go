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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "passkey.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)

	_, err = Open("   ")
	assert.Error(t, err)
}

func TestUserStore_SQLite(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	users := store.Users()

	user := passkey.NewUser("sqlite@example.com", "SQLite User", "SQL")
	verified := time.Now().UTC().Truncate(time.Millisecond)
	user.EmailVerifiedAt = &verified
	require.NoError(t, users.Create(ctx, user))

	t.Run("round trip", func(t *testing.T) {
		got, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)
		assert.Equal(t, user.Name, got.Name)
		assert.Equal(t, user.DisplayName, got.DisplayName)
		require.NotNil(t, got.EmailVerifiedAt)
		assert.Equal(t, verified, *got.EmailVerifiedAt)

		got, err = users.GetByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := users.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, passkey.ErrUserNotFound)

		_, err = users.GetByEmail(ctx, "missing@example.com")
		assert.ErrorIs(t, err, passkey.ErrUserNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := passkey.NewUser("sqlite@example.com", "Dup", "")
		err := users.Create(ctx, dup)
		assert.ErrorIs(t, err, passkey.ErrUserAlreadyExists)
	})

	t.Run("list", func(t *testing.T) {
		second := passkey.NewUser("second@example.com", "Second", "")
		second.CreatedAt = user.CreatedAt.Add(time.Minute)
		require.NoError(t, users.Create(ctx, second))

		all, err := users.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, user.ID, all[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, users.Delete(ctx, user.ID))
		assert.ErrorIs(t, users.Delete(ctx, user.ID), passkey.ErrUserNotFound)
	})
}

func testCredential(userID string, id byte) *passkey.Credential {
	return &passkey.Credential{
		ID:              []byte{id, 0x02, 0x03},
		UserID:          userID,
		PublicKey:       []byte{0xAA, 0xBB},
		AttestationType: "none",
		Transports:      []protocol.AuthenticatorTransport{protocol.Internal, protocol.Hybrid},
		Flags: passkey.CredentialFlags{
			UserPresent:  true,
			UserVerified: true,
		},
		Authenticator: passkey.AuthenticatorData{
			AAGUID:    []byte{0x01, 0x02},
			SignCount: 0,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestCredentialStore_SQLite(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	users := store.Users()
	creds := store.Credentials()

	alice := passkey.NewUser("alice@example.com", "Alice", "")
	bob := passkey.NewUser("bob@example.com", "Bob", "")
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))

	cred := testCredential(alice.ID, 0x01)
	require.NoError(t, creds.Save(ctx, cred))

	t.Run("round trip", func(t *testing.T) {
		got, err := creds.GetByCredentialID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, cred.ID, got.ID)
		assert.Equal(t, alice.ID, got.UserID)
		assert.Equal(t, cred.PublicKey, got.PublicKey)
		assert.Equal(t, cred.Transports, got.Transports)
		assert.True(t, got.Flags.UserPresent)
		assert.Equal(t, cred.CreatedAt, got.CreatedAt)
		assert.Nil(t, got.LastUsedAt)
	})

	t.Run("duplicate refused across users", func(t *testing.T) {
		dup := testCredential(bob.ID, 0x01)
		err := creds.Save(ctx, dup)
		assert.ErrorIs(t, err, passkey.ErrDuplicateCredential)
	})

	t.Run("per user listing", func(t *testing.T) {
		second := testCredential(alice.ID, 0x02)
		second.CreatedAt = cred.CreatedAt.Add(time.Minute)
		require.NoError(t, creds.Save(ctx, second))

		list, err := creds.GetByUserID(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, cred.ID, list[0].ID)

		list, err = creds.GetByUserID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("update", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		cred.Authenticator.SignCount = 3
		cred.LastUsedAt = &now
		require.NoError(t, creds.Update(ctx, cred))

		got, err := creds.GetByCredentialID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), got.Authenticator.SignCount)
		require.NotNil(t, got.LastUsedAt)
		assert.Equal(t, now, *got.LastUsedAt)

		missing := testCredential(alice.ID, 0xFF)
		assert.ErrorIs(t, creds.Update(ctx, missing), passkey.ErrCredentialNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, creds.Delete(ctx, cred.ID))
		_, err := creds.GetByCredentialID(ctx, cred.ID)
		assert.ErrorIs(t, err, passkey.ErrCredentialNotFound)

		assert.ErrorIs(t, creds.Delete(ctx, cred.ID), passkey.ErrCredentialNotFound)
	})

	t.Run("cascade on user delete", func(t *testing.T) {
		carol := passkey.NewUser("carol@example.com", "Carol", "")
		require.NoError(t, users.Create(ctx, carol))
		require.NoError(t, creds.Save(ctx, testCredential(carol.ID, 0x30)))

		require.NoError(t, users.Delete(ctx, carol.ID))

		list, err := creds.GetByUserID(ctx, carol.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestChallengeStore_SQLite(t *testing.T) {
	ctx := context.Background()

	session := &webauthn.SessionData{
		Challenge: "c2VjcmV0LWNoYWxsZW5nZQ",
		UserID:    []byte("user-1"),
	}

	t.Run("take consumes", func(t *testing.T) {
		challenges := openTestStore(t).Challenges()
		require.NoError(t, challenges.Put(ctx, "register:user-1", session))

		got, err := challenges.Take(ctx, "register:user-1")
		require.NoError(t, err)
		assert.Equal(t, session.Challenge, got.Challenge)
		assert.Equal(t, session.UserID, got.UserID)

		_, err = challenges.Take(ctx, "register:user-1")
		assert.ErrorIs(t, err, passkey.ErrChallengeNotFound)
	})

	t.Run("put replaces", func(t *testing.T) {
		challenges := openTestStore(t).Challenges()
		require.NoError(t, challenges.Put(ctx, "register:user-1", session))
		require.NoError(t, challenges.Put(ctx, "register:user-1", &webauthn.SessionData{Challenge: "second"}))

		got, err := challenges.Take(ctx, "register:user-1")
		require.NoError(t, err)
		assert.Equal(t, "second", got.Challenge)
	})

	t.Run("expired entries are consumed", func(t *testing.T) {
		store := openTestStore(t)
		store.SetChallengeTTL(time.Millisecond)
		challenges := store.Challenges()

		require.NoError(t, challenges.Put(ctx, "register:user-1", session))
		time.Sleep(5 * time.Millisecond)

		_, err := challenges.Take(ctx, "register:user-1")
		assert.ErrorIs(t, err, passkey.ErrChallengeExpired)

		_, err = challenges.Take(ctx, "register:user-1")
		assert.ErrorIs(t, err, passkey.ErrChallengeNotFound)
	})

	t.Run("delete expired sweeps", func(t *testing.T) {
		store := openTestStore(t)
		store.SetChallengeTTL(time.Millisecond)
		challenges := store.Challenges()

		require.NoError(t, challenges.Put(ctx, "a", session))
		require.NoError(t, challenges.Put(ctx, "b", session))
		time.Sleep(5 * time.Millisecond)

		removed, err := challenges.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		removed, err = challenges.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("delete", func(t *testing.T) {
		challenges := openTestStore(t).Challenges()
		require.NoError(t, challenges.Put(ctx, "register:user-1", session))
		require.NoError(t, challenges.Delete(ctx, "register:user-1"))

		_, err := challenges.Take(ctx, "register:user-1")
		assert.ErrorIs(t, err, passkey.ErrChallengeNotFound)
	})
}

// TestServiceWithSQLiteStores wires the passkey service against the
// SQLite persistence layer to make sure the contracts line up.
func TestServiceWithSQLiteStores(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config: &passkey.Config{
			RPID:          "example.com",
			RPDisplayName: "Example Corp",
			RPOrigins:     []string{"https://example.com"},
		},
		UserStore:       store.Users(),
		ChallengeStore:  store.Challenges(),
		CredentialStore: store.Credentials(),
	})
	require.NoError(t, err)

	user := passkey.NewUser("wired@example.com", "Wired", "")
	require.NoError(t, store.Users().Create(ctx, user))

	options, err := svc.BeginRegistration(ctx, user.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(options.Response.Challenge), 16)

	creds, err := svc.ListCredentials(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, creds)
}
