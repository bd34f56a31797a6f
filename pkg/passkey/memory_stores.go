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
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// MemoryUserStore is an in-memory implementation of UserStore.
// This is intended for development and testing only.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]*User
}

// NewMemoryUserStore creates a new in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]*User),
	}
}

// GetByID retrieves a user by account ID.
func (s *MemoryUserStore) GetByID(ctx context.Context, userID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetByEmail retrieves a user by email address.
func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Create provisions a new user.
func (s *MemoryUserStore) Create(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.ID]; ok {
		return ErrUserAlreadyExists
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return ErrUserAlreadyExists
	}

	s.byID[user.ID] = user
	s.byEmail[user.Email] = user
	return nil
}

// List returns all users ordered by creation time.
func (s *MemoryUserStore) List(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*User, 0, len(s.byID))
	for _, u := range s.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// Delete removes a user by account ID.
func (s *MemoryUserStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}

	delete(s.byID, userID)
	delete(s.byEmail, user.Email)
	return nil
}

// Count returns the number of users in the store.
func (s *MemoryUserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// MemoryChallengeStore is an in-memory implementation of ChallengeStore.
// This is intended for development and testing only.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	entries map[string]*challengeEntry
	ttl     time.Duration
}

type challengeEntry struct {
	data      *webauthn.SessionData
	expiresAt time.Time
}

// NewMemoryChallengeStore creates a new in-memory challenge store with
// the default 5 minute TTL.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return NewMemoryChallengeStoreWithTTL(5 * time.Minute)
}

// NewMemoryChallengeStoreWithTTL creates a new in-memory challenge store
// with a custom TTL.
func NewMemoryChallengeStoreWithTTL(ttl time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		entries: make(map[string]*challengeEntry),
		ttl:     ttl,
	}
}

// Put stores ceremony state under key, replacing any existing entry.
func (s *MemoryChallengeStore) Put(ctx context.Context, key string, data *webauthn.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &challengeEntry{
		data:      data,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Take retrieves and removes ceremony state. Single-use.
func (s *MemoryChallengeStore) Take(ctx context.Context, key string) (*webauthn.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	delete(s.entries, key)

	if time.Now().After(entry.expiresAt) {
		return nil, ErrChallengeExpired
	}
	return entry.data, nil
}

// Delete removes ceremony state without reading it.
func (s *MemoryChallengeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Count returns the number of pending challenges in the store.
func (s *MemoryChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup removes expired challenges and returns how many were removed.
func (s *MemoryChallengeStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// DeleteExpired removes expired challenges, matching the persistent
// store's sweep interface.
func (s *MemoryChallengeStore) DeleteExpired(ctx context.Context) (int64, error) {
	return int64(s.Cleanup()), nil
}

// MemoryCredentialStore is an in-memory implementation of CredentialStore.
// This is intended for development and testing only.
type MemoryCredentialStore struct {
	mu       sync.RWMutex
	byID     map[string]*Credential
	byUserID map[string][]*Credential
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:     make(map[string]*Credential),
		byUserID: make(map[string][]*Credential),
	}
}

// Save stores a new credential, enforcing global credential ID uniqueness.
func (s *MemoryCredentialStore) Save(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(cred.ID)
	if _, ok := s.byID[credKey]; ok {
		return ErrDuplicateCredential
	}

	s.byID[credKey] = cred
	s.byUserID[cred.UserID] = append(s.byUserID[cred.UserID], cred)
	return nil
}

// GetByUserID retrieves all credentials for a user in creation order.
func (s *MemoryCredentialStore) GetByUserID(ctx context.Context, userID string) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds, ok := s.byUserID[userID]
	if !ok {
		return []*Credential{}, nil
	}

	// Return a copy to prevent external modification
	result := make([]*Credential, len(creds))
	copy(result, creds)
	return result, nil
}

// GetByCredentialID retrieves a credential by its ID.
func (s *MemoryCredentialStore) GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.byID[hex.EncodeToString(credID)]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return cred, nil
}

// Update updates an existing credential.
func (s *MemoryCredentialStore) Update(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(cred.ID)
	if _, ok := s.byID[credKey]; !ok {
		return ErrCredentialNotFound
	}

	s.byID[credKey] = cred

	creds := s.byUserID[cred.UserID]
	for i, c := range creds {
		if hex.EncodeToString(c.ID) == credKey {
			creds[i] = cred
			break
		}
	}
	return nil
}

// Delete removes a credential by its ID.
func (s *MemoryCredentialStore) Delete(ctx context.Context, credID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(credID)
	cred, ok := s.byID[credKey]
	if !ok {
		return ErrCredentialNotFound
	}

	delete(s.byID, credKey)

	creds := s.byUserID[cred.UserID]
	for i, c := range creds {
		if hex.EncodeToString(c.ID) == credKey {
			s.byUserID[cred.UserID] = append(creds[:i], creds[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteByUserID removes all credentials for a user.
func (s *MemoryCredentialStore) DeleteByUserID(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, ok := s.byUserID[userID]
	if !ok {
		return nil
	}

	for _, cred := range creds {
		delete(s.byID, hex.EncodeToString(cred.ID))
	}
	delete(s.byUserID, userID)
	return nil
}

// Count returns the total number of credentials in the store.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
