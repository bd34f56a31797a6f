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

package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// credentialCmd represents the credential command
var credentialCmd = &cobra.Command{
	Use:     "credential",
	Aliases: []string{"cred"},
	Short:   "Manage passkey credentials",
	Long: `Commands for inspecting and revoking passkey credentials.

Revocation here is an administrative override. Users revoke their own
passkeys through the server API; this command exists for support cases
such as a reported lost or compromised authenticator.`,
}

// credentialListCmd lists a user's credentials
var credentialListCmd = &cobra.Command{
	Use:   "list <email>",
	Short: "List a user's passkey credentials",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		email := args[0]
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		store, err := cfg.OpenStore()
		if err != nil {
			handleError(err)
			return
		}
		defer func() { _ = store.Close() }()

		ctx := context.Background()
		user, err := store.Users().GetByEmail(ctx, email)
		if err != nil {
			handleError(fmt.Errorf("failed to find user: %w", err))
			return
		}

		creds, err := store.Credentials().GetByUserID(ctx, user.ID)
		if err != nil {
			handleError(fmt.Errorf("failed to list credentials: %w", err))
			return
		}

		if err := printer.PrintCredentialList(creds); err != nil {
			handleError(err)
		}
	},
}

// credentialRevokeCmd revokes a single credential
var credentialRevokeCmd = &cobra.Command{
	Use:   "revoke <email> <credential-id>",
	Short: "Revoke a passkey credential",
	Long: `Revoke a passkey credential by its base64url ID.

The credential must belong to the named user. After revocation the
authenticator can no longer be used to log in; the device itself is
unaffected and still holds its half of the key pair.

Example:
  passkey credential revoke alice@example.com dGVzdC1jcmVkZW50aWFs`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		email := args[0]
		credIDStr := args[1]
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		credID, err := decodeCredentialID(credIDStr)
		if err != nil {
			handleError(fmt.Errorf("invalid credential ID: %w", err))
			return
		}

		store, err := cfg.OpenStore()
		if err != nil {
			handleError(err)
			return
		}
		defer func() { _ = store.Close() }()

		ctx := context.Background()
		user, err := store.Users().GetByEmail(ctx, email)
		if err != nil {
			handleError(fmt.Errorf("failed to find user: %w", err))
			return
		}

		// Ownership check mirrors the API: a credential belonging to a
		// different account is treated as not found.
		cred, err := store.Credentials().GetByCredentialID(ctx, credID)
		if err != nil || cred.UserID != user.ID {
			handleError(fmt.Errorf("credential not found for user %s", email))
			return
		}

		if !bytes.Equal(cred.ID, credID) {
			handleError(fmt.Errorf("credential not found for user %s", email))
			return
		}

		if err := store.Credentials().Delete(ctx, credID); err != nil {
			handleError(fmt.Errorf("failed to revoke credential: %w", err))
			return
		}

		printVerbose("Revoked credential %s for user %s", credIDStr, user.ID)

		if err := printer.PrintSuccess(fmt.Sprintf("Credential revoked for '%s'.", email)); err != nil {
			handleError(err)
		}
	},
}

// decodeCredentialID decodes a base64url credential ID, accepting both
// padded and unpadded forms.
func decodeCredentialID(encoded string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(encoded)
}

func init() {
	credentialCmd.AddCommand(credentialListCmd)
	credentialCmd.AddCommand(credentialRevokeCmd)
}
