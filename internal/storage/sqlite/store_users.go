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
	"errors"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

const userColumns = "id, email, name, display_name, avatar_url, email_verified_at, created_at"

// GetByID retrieves a user by account ID.
func (s *UserStore) GetByID(ctx context.Context, userID string) (*passkey.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", userID)
	return scanUser(row)
}

// GetByEmail retrieves a user by email address.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*passkey.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("email is required")
	}

	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return scanUser(row)
}

// Create provisions a new user.
func (s *UserStore) Create(ctx context.Context, user *passkey.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(user.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(user.Email) == "" {
		return fmt.Errorf("email is required")
	}

	verifiedAt := sql.NullInt64{}
	if user.EmailVerifiedAt != nil {
		verifiedAt = sql.NullInt64{Int64: toMillis(*user.EmailVerifiedAt), Valid: true}
	}

	_, err := s.store.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, display_name, avatar_url, email_verified_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.DisplayName, user.AvatarURL,
		verifiedAt, toMillis(user.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return passkey.ErrUserAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// List returns all users ordered by creation time.
func (s *UserStore) List(ctx context.Context) ([]*passkey.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*passkey.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Delete removes a user and, through the schema's cascade, all of the
// user's credentials.
func (s *UserStore) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res, err := s.store.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return passkey.ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*passkey.User, error) {
	var user passkey.User
	var verifiedAt sql.NullInt64
	var createdAt int64

	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.DisplayName,
		&user.AvatarURL, &verifiedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, passkey.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.CreatedAt = fromMillis(createdAt)
	if verifiedAt.Valid {
		t := fromMillis(verifiedAt.Int64)
		user.EmailVerifiedAt = &t
	}
	return &user, nil
}

var _ passkey.UserStore = (*UserStore)(nil)
