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
	"context"
	"fmt"
	"os"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/spf13/cobra"
)

// userCmd represents the user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long: `Commands for managing user accounts in the passkey credential store.

Accounts are provisioned here or by an external identity system; passkey
registration itself always happens through the server API, where the
user's authenticator completes the WebAuthn ceremony.`,
}

// userAddCmd provisions a new user account
var userAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Provision a new user account",
	Long: `Provision a new user account in the credential store.

The account starts with no passkeys. The user registers their first
passkey through the server API after authenticating with the identity
system.

Example:
  passkey user add alice@example.com --name "Alice Smith"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		email := args[0]
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		name, _ := cmd.Flags().GetString("name")
		displayName, _ := cmd.Flags().GetString("display-name")
		if displayName == "" {
			displayName = name
		}
		if displayName == "" {
			displayName = email
		}

		store, err := cfg.OpenStore()
		if err != nil {
			handleError(err)
			return
		}
		defer func() { _ = store.Close() }()

		ctx := context.Background()

		// Reject duplicate emails up front for a friendlier message
		if _, err := store.Users().GetByEmail(ctx, email); err == nil {
			handleError(fmt.Errorf("user %s already exists", email))
			return
		}

		user := passkey.NewUser(email, name, displayName)
		if err := store.Users().Create(ctx, user); err != nil {
			handleError(fmt.Errorf("failed to create user: %w", err))
			return
		}

		printVerbose("Created user %s in %s", user.ID, cfg.DBPath)

		if cfg.OutputFormat == "json" {
			if err := printer.printJSON(map[string]interface{}{
				"success": true,
				"id":      user.ID,
				"email":   user.Email,
			}); err != nil {
				handleError(err)
			}
		} else {
			fmt.Printf("User created.\n\n")
			fmt.Printf("ID:    %s\n", user.ID)
			fmt.Printf("Email: %s\n", user.Email)
		}
	},
}

// userListCmd lists all users
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all user accounts",
	Long:  `List all user accounts in the credential store.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		store, err := cfg.OpenStore()
		if err != nil {
			handleError(err)
			return
		}
		defer func() { _ = store.Close() }()

		users, err := store.Users().List(context.Background())
		if err != nil {
			handleError(fmt.Errorf("failed to list users: %w", err))
			return
		}

		if err := printer.PrintUserList(users); err != nil {
			handleError(err)
		}
	},
}

// userGetCmd shows details for a single user including credentials
var userGetCmd = &cobra.Command{
	Use:   "get <email>",
	Short: "Get user details",
	Long:  `Get detailed information about a user account and its passkeys.`,
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
			handleError(fmt.Errorf("failed to get user: %w", err))
			return
		}

		creds, err := store.Credentials().GetByUserID(ctx, user.ID)
		if err != nil {
			handleError(fmt.Errorf("failed to list credentials: %w", err))
			return
		}

		if err := printer.PrintUserInfo(user, creds); err != nil {
			handleError(err)
		}
	},
}

// userDeleteCmd deletes a user and all of their credentials
var userDeleteCmd = &cobra.Command{
	Use:   "delete <email>",
	Short: "Delete a user account",
	Long: `Delete a user account and all of its passkey credentials.

This is irreversible. The user loses all registered passkeys and must
re-register after being provisioned again.`,
	Args: cobra.ExactArgs(1),
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

		// Credentials first, the user row is the authority record
		if err := store.Credentials().DeleteByUserID(ctx, user.ID); err != nil {
			handleError(fmt.Errorf("failed to delete credentials: %w", err))
			return
		}
		if err := store.Users().Delete(ctx, user.ID); err != nil {
			handleError(fmt.Errorf("failed to delete user: %w", err))
			return
		}

		if err := printer.PrintSuccess(fmt.Sprintf("User '%s' deleted.", email)); err != nil {
			handleError(err)
		}
	},
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userGetCmd)
	userCmd.AddCommand(userDeleteCmd)

	userAddCmd.Flags().String("name", "", "user full name")
	userAddCmd.Flags().String("display-name", "", "display name shown in authenticator prompts (defaults to name)")
}
