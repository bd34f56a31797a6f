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

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

const credentialColumns = `credential_id, user_id, public_key, attestation_type,
	transports, user_present, user_verified, backup_eligible, backup_state,
	aaguid, sign_count, clone_warning, attachment, created_at, last_used_at`

// Save stores a new credential. The primary key on credential_id makes
// the storage engine refuse duplicates across all users.
func (s *CredentialStore) Save(ctx context.Context, cred *passkey.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(cred.ID) == 0 {
		return fmt.Errorf("credential id is required")
	}
	if cred.UserID == "" {
		return fmt.Errorf("user id is required")
	}

	transports, err := json.Marshal(cred.Transports)
	if err != nil {
		return fmt.Errorf("marshal transports: %w", err)
	}

	lastUsed := sql.NullInt64{}
	if cred.LastUsedAt != nil {
		lastUsed = sql.NullInt64{Int64: toMillis(*cred.LastUsedAt), Valid: true}
	}

	_, err = s.store.db.ExecContext(ctx,
		`INSERT INTO credentials (`+credentialColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.UserID, cred.PublicKey, cred.AttestationType,
		string(transports), cred.Flags.UserPresent, cred.Flags.UserVerified,
		cred.Flags.BackupEligible, cred.Flags.BackupState,
		cred.Authenticator.AAGUID, cred.Authenticator.SignCount,
		cred.Authenticator.CloneWarning, string(cred.Authenticator.Attachment),
		toMillis(cred.CreatedAt), lastUsed)
	if err != nil {
		if isUniqueViolation(err) {
			return passkey.ErrDuplicateCredential
		}
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// GetByUserID retrieves all credentials for a user in creation order.
func (s *CredentialStore) GetByUserID(ctx context.Context, userID string) ([]*passkey.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials
		 WHERE user_id = ? ORDER BY created_at, credential_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	creds := []*passkey.Credential{}
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// GetByCredentialID retrieves a credential by its ID.
func (s *CredentialStore) GetByCredentialID(ctx context.Context, credID []byte) (*passkey.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE credential_id = ?`, credID)
	return scanCredential(row)
}

// Update updates an existing credential's sign counter, clone warning
// and last-used timestamp.
func (s *CredentialStore) Update(ctx context.Context, cred *passkey.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lastUsed := sql.NullInt64{}
	if cred.LastUsedAt != nil {
		lastUsed = sql.NullInt64{Int64: toMillis(*cred.LastUsedAt), Valid: true}
	}

	res, err := s.store.db.ExecContext(ctx,
		`UPDATE credentials SET sign_count = ?, clone_warning = ?, last_used_at = ?
		 WHERE credential_id = ?`,
		cred.Authenticator.SignCount, cred.Authenticator.CloneWarning,
		lastUsed, cred.ID)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if affected == 0 {
		return passkey.ErrCredentialNotFound
	}
	return nil
}

// Delete removes a credential by its ID.
func (s *CredentialStore) Delete(ctx context.Context, credID []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM credentials WHERE credential_id = ?", credID)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if affected == 0 {
		return passkey.ErrCredentialNotFound
	}
	return nil
}

// DeleteByUserID removes all credentials for a user.
func (s *CredentialStore) DeleteByUserID(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM credentials WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

func scanCredential(row rowScanner) (*passkey.Credential, error) {
	var cred passkey.Credential
	var transports string
	var aaguid []byte
	var attachment string
	var createdAt int64
	var lastUsed sql.NullInt64

	err := row.Scan(&cred.ID, &cred.UserID, &cred.PublicKey, &cred.AttestationType,
		&transports, &cred.Flags.UserPresent, &cred.Flags.UserVerified,
		&cred.Flags.BackupEligible, &cred.Flags.BackupState,
		&aaguid, &cred.Authenticator.SignCount, &cred.Authenticator.CloneWarning,
		&attachment, &createdAt, &lastUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, passkey.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}

	if err := json.Unmarshal([]byte(transports), &cred.Transports); err != nil {
		return nil, fmt.Errorf("unmarshal transports: %w", err)
	}

	cred.Authenticator.AAGUID = aaguid
	cred.Authenticator.Attachment = protocol.AuthenticatorAttachment(attachment)
	cred.CreatedAt = fromMillis(createdAt)
	if lastUsed.Valid {
		t := fromMillis(lastUsed.Int64)
		cred.LastUsedAt = &t
	}
	return &cred, nil
}

var _ passkey.CredentialStore = (*CredentialStore)(nil)
