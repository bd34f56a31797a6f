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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Put stores ceremony state under key, replacing any existing entry.
func (s *ChallengeStore) Put(ctx context.Context, key string, data *webauthn.SessionData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("challenge key is required")
	}

	sessionJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	expiresAt := toMillis(time.Now().Add(s.store.challengeTTL))
	_, err = s.store.db.ExecContext(ctx,
		`INSERT INTO challenges (key, session_json, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET session_json = excluded.session_json,
		                                 expires_at = excluded.expires_at`,
		key, string(sessionJSON), expiresAt)
	if err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

// Take retrieves and removes ceremony state. Single-use: the row is
// deleted whether or not it has expired.
func (s *ChallengeStore) Take(ctx context.Context, key string) (*webauthn.SessionData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("take challenge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var sessionJSON string
	var expiresAt int64
	err = tx.QueryRowContext(ctx,
		"SELECT session_json, expires_at FROM challenges WHERE key = ?", key).
		Scan(&sessionJSON, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, passkey.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("take challenge: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM challenges WHERE key = ?", key); err != nil {
		return nil, fmt.Errorf("take challenge: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("take challenge: %w", err)
	}

	if time.Now().After(fromMillis(expiresAt)) {
		return nil, passkey.ErrChallengeExpired
	}

	var data webauthn.SessionData
	if err := json.Unmarshal([]byte(sessionJSON), &data); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &data, nil
}

// Delete removes ceremony state without reading it.
func (s *ChallengeStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.store.db.ExecContext(ctx, "DELETE FROM challenges WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

// DeleteExpired sweeps challenges past their TTL and returns how many
// rows were removed. Called periodically by the server's cleanup routine.
func (s *ChallengeStore) DeleteExpired(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM challenges WHERE expires_at < ?", toMillis(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	return res.RowsAffected()
}

var _ passkey.ChallengeStore = (*ChallengeStore)(nil)
