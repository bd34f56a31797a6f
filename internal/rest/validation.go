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

package rest

import (
	"fmt"
	"net/mail"
	"strings"
)

// ValidateEmail checks that an email address is plausible before it is
// handed to the user store. Rejects control characters and oversized
// input to keep logs and SQL parameters clean.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if len(email) > 254 {
		return fmt.Errorf("email too long (max 254 characters)")
	}

	for _, r := range email {
		if r < 32 || r == 127 {
			return fmt.Errorf("email contains invalid characters")
		}
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email address")
	}
	// Reject the "Name <addr>" form, only a bare address is accepted.
	if addr.Address != email {
		return fmt.Errorf("invalid email address")
	}

	return nil
}

// ValidateCredentialIDParam checks a base64url credential ID path
// parameter before decoding.
func ValidateCredentialIDParam(param string) error {
	if param == "" {
		return fmt.Errorf("credential ID cannot be empty")
	}

	// Credential IDs are at most 1023 bytes per the WebAuthn spec,
	// about 1366 base64 characters.
	if len(param) > 1400 {
		return fmt.Errorf("credential ID too long")
	}

	for _, r := range param {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '=':
		default:
			return fmt.Errorf("credential ID contains invalid characters")
		}
	}

	return nil
}

// SanitizeString removes potentially dangerous characters from a string.
// Used for log messages and error outputs to prevent log injection.
func SanitizeString(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length
	if len(s) > 1000 {
		s = s[:1000] + "..."
	}

	return s
}
