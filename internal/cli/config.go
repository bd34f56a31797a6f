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
	"fmt"
	"os"

	"github.com/jeremyhahn/go-passkey/internal/storage/sqlite"
)

// Config holds global CLI configuration
type Config struct {
	// DBPath is the path to the SQLite credential store
	DBPath string

	// OutputFormat controls output formatting (json, text, table)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	dbPath := os.Getenv("PASSKEY_DB_PATH")
	if dbPath == "" {
		dbPath = "passkey.db"
	}
	return &Config{
		DBPath:       dbPath,
		OutputFormat: "text",
		Verbose:      false,
	}
}

// OpenStore opens the SQLite credential store. The caller must Close it.
func (c *Config) OpenStore() (*sqlite.Store, error) {
	store, err := sqlite.Open(c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store %s: %w", c.DBPath, err)
	}
	return store, nil
}
