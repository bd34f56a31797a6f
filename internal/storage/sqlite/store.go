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

// Package sqlite implements the passkey persistence contracts over a
// single SQLite file. Credential uniqueness is enforced by the schema's
// primary key, so a racing duplicate registration surfaces as a
// constraint violation rather than silent loss.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// DefaultChallengeTTL is how long an issued challenge stays redeemable.
const DefaultChallengeTTL = 5 * time.Minute

// Store implements passkey persistence over SQLite. It provides the
// user, credential and challenge store contracts from pkg/passkey.
type Store struct {
	db           *sql.DB
	challengeTTL time.Duration
}

// Open opens a passkey SQLite store and applies the embedded schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db:           db,
		challengeTTL: DefaultChallengeTTL,
	}, nil
}

// UserStore is the users view of the store. It implements
// passkey.UserStore.
type UserStore struct {
	store *Store
}

// CredentialStore is the credentials view of the store. It implements
// passkey.CredentialStore.
type CredentialStore struct {
	store *Store
}

// ChallengeStore is the pending-ceremonies view of the store. It
// implements passkey.ChallengeStore.
type ChallengeStore struct {
	store *Store
}

// Users returns the user store view.
func (s *Store) Users() *UserStore {
	return &UserStore{store: s}
}

// Credentials returns the credential store view.
func (s *Store) Credentials() *CredentialStore {
	return &CredentialStore{store: s}
}

// Challenges returns the challenge store view.
func (s *Store) Challenges() *ChallengeStore {
	return &ChallengeStore{store: s}
}

// SetChallengeTTL overrides the challenge redemption window.
func (s *Store) SetChallengeTTL(ttl time.Duration) {
	if ttl > 0 {
		s.challengeTTL = ttl
	}
}

// DB returns the raw database handle.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// isUniqueViolation detects SQLite unique constraint failures.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
