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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintUserList prints a list of user accounts
func (p *Printer) PrintUserList(users []*passkey.User) error {
	switch p.format {
	case OutputFormatJSON:
		userList := make([]map[string]interface{}, len(users))
		for i, u := range users {
			userList[i] = map[string]interface{}{
				"id":           u.ID,
				"email":        u.Email,
				"name":         u.Name,
				"display_name": u.DisplayName,
				"created_at":   u.CreatedAt.Format(time.RFC3339),
			}
		}
		return p.printJSON(map[string]interface{}{
			"users": userList,
			"total": len(userList),
		})
	case OutputFormatTable:
		if len(users) == 0 {
			fmt.Fprintln(p.writer, "No users found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-38s %-30s %-20s %-20s\n", "ID", "EMAIL", "NAME", "CREATED")
		fmt.Fprintln(p.writer, strings.Repeat("-", 110))
		for _, u := range users {
			fmt.Fprintf(p.writer, "%-38s %-30s %-20s %-20s\n",
				u.ID,
				truncateString(u.Email, 30),
				truncateString(u.Name, 20),
				u.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(p.writer, "\nTotal: %d user(s)\n", len(users))
		return nil
	case OutputFormatText:
		if len(users) == 0 {
			fmt.Fprintln(p.writer, "No users found")
			return nil
		}
		fmt.Fprintln(p.writer, "Users:")
		for _, u := range users {
			fmt.Fprintf(p.writer, "  - %s (%s)\n", u.Email, u.ID)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintUserInfo prints detailed user information with credentials
func (p *Printer) PrintUserInfo(u *passkey.User, creds []*passkey.Credential) error {
	switch p.format {
	case OutputFormatJSON:
		userInfo := map[string]interface{}{
			"id":               u.ID,
			"email":            u.Email,
			"name":             u.Name,
			"display_name":     u.DisplayName,
			"created_at":       u.CreatedAt.Format(time.RFC3339),
			"credential_count": len(creds),
		}
		credList := make([]map[string]interface{}, len(creds))
		for i, c := range creds {
			credList[i] = credentialInfo(c)
		}
		userInfo["credentials"] = credList
		return p.printJSON(userInfo)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "User Details:\n")
		fmt.Fprintf(p.writer, "  ID:           %s\n", u.ID)
		fmt.Fprintf(p.writer, "  Email:        %s\n", u.Email)
		fmt.Fprintf(p.writer, "  Name:         %s\n", u.Name)
		fmt.Fprintf(p.writer, "  Display Name: %s\n", u.DisplayName)
		fmt.Fprintf(p.writer, "  Created:      %s\n", u.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(p.writer, "\n  Credentials (%d):\n", len(creds))
		for i, c := range creds {
			fmt.Fprintf(p.writer, "    %d. %s\n", i+1, base64.RawURLEncoding.EncodeToString(c.ID))
			fmt.Fprintf(p.writer, "       Created: %s\n", c.CreatedAt.Format(time.RFC3339))
			if c.LastUsedAt != nil {
				fmt.Fprintf(p.writer, "       Last Used: %s\n", c.LastUsedAt.Format(time.RFC3339))
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCredentialList prints a list of credentials
func (p *Printer) PrintCredentialList(creds []*passkey.Credential) error {
	switch p.format {
	case OutputFormatJSON:
		credList := make([]map[string]interface{}, len(creds))
		for i, c := range creds {
			credList[i] = credentialInfo(c)
		}
		return p.printJSON(map[string]interface{}{
			"credentials": credList,
			"total":       len(credList),
		})
	case OutputFormatTable:
		if len(creds) == 0 {
			fmt.Fprintln(p.writer, "No credentials found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-30s %-20s %-20s %-10s\n", "ID", "CREATED", "LAST USED", "BACKUP")
		fmt.Fprintln(p.writer, strings.Repeat("-", 84))
		for _, c := range creds {
			idStr := base64.RawURLEncoding.EncodeToString(c.ID)
			if len(idStr) > 27 {
				idStr = idStr[:27] + "..."
			}
			lastUsed := "never"
			if c.LastUsedAt != nil {
				lastUsed = c.LastUsedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(p.writer, "%-30s %-20s %-20s %-10t\n",
				idStr,
				c.CreatedAt.Format("2006-01-02 15:04:05"),
				lastUsed,
				c.Flags.BackupState)
		}
		fmt.Fprintf(p.writer, "\nTotal: %d credential(s)\n", len(creds))
		return nil
	case OutputFormatText:
		if len(creds) == 0 {
			fmt.Fprintln(p.writer, "No credentials found")
			return nil
		}
		fmt.Fprintln(p.writer, "Credentials:")
		for _, c := range creds {
			fmt.Fprintf(p.writer, "  - %s\n", base64.RawURLEncoding.EncodeToString(c.ID))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintMessage prints an informational message
func (p *Printer) PrintMessage(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"message": message,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// credentialInfo converts a credential to a JSON-friendly map
func credentialInfo(c *passkey.Credential) map[string]interface{} {
	info := map[string]interface{}{
		"id":               base64.RawURLEncoding.EncodeToString(c.ID),
		"user_id":          c.UserID,
		"attestation_type": c.AttestationType,
		"backed_up":        c.Flags.BackupState,
		"sign_count":       c.Authenticator.SignCount,
		"created_at":       c.CreatedAt.Format(time.RFC3339),
	}
	if c.LastUsedAt != nil {
		info["last_used_at"] = c.LastUsedAt.Format(time.RFC3339)
	}
	if len(c.Transports) > 0 {
		transports := make([]string, len(c.Transports))
		for i, t := range c.Transports {
			transports[i] = string(t)
		}
		info["transports"] = transports
	}
	return info
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// truncateString truncates a string to the given length
func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
