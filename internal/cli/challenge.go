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

	"github.com/spf13/cobra"
)

// challengeCmd represents the challenge command
var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Manage pending ceremony challenges",
}

// challengeSweepCmd removes expired challenges from the store
var challengeSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired ceremony challenges",
	Long: `Remove expired ceremony challenges from the credential store.

The server runs this sweep periodically on its own. The command exists
for deployments where the server is down and the store needs compacting,
and for inspection during debugging.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, os.Stdout)

		store, err := cfg.OpenStore()
		if err != nil {
			handleError(err)
			return
		}
		defer func() { _ = store.Close() }()

		removed, err := store.Challenges().DeleteExpired(context.Background())
		if err != nil {
			handleError(fmt.Errorf("failed to sweep challenges: %w", err))
			return
		}

		if cfg.OutputFormat == "json" {
			if err := printer.printJSON(map[string]interface{}{
				"success": true,
				"removed": removed,
			}); err != nil {
				handleError(err)
			}
		} else {
			fmt.Printf("Removed %d expired challenge(s).\n", removed)
		}
	},
}

func init() {
	challengeCmd.AddCommand(challengeSweepCmd)
}
