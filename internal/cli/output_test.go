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
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintUserList_Text(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("text", &buf)

	users := []*passkey.User{
		passkey.NewUser("alice@example.com", "Alice Smith", "Alice"),
	}
	require.NoError(t, printer.PrintUserList(users))
	assert.Contains(t, buf.String(), "alice@example.com")
}

func TestPrintUserList_JSON(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("json", &buf)

	users := []*passkey.User{
		passkey.NewUser("alice@example.com", "Alice Smith", "Alice"),
		passkey.NewUser("bob@example.com", "Bob Jones", "Bob"),
	}
	require.NoError(t, printer.PrintUserList(users))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(2), decoded["total"])
}

func TestPrintUserList_Empty(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("table", &buf)

	require.NoError(t, printer.PrintUserList(nil))
	assert.Contains(t, buf.String(), "No users found")
}

func TestPrintUserList_UnknownFormat(t *testing.T) {
	printer := NewPrinter("xml", &bytes.Buffer{})
	assert.Error(t, printer.PrintUserList(nil))
}

func TestPrintCredentialList(t *testing.T) {
	lastUsed := time.Now().UTC()
	cred := &passkey.Credential{
		ID:         []byte("test-credential"),
		UserID:     "user-1",
		CreatedAt:  time.Now().UTC(),
		LastUsedAt: &lastUsed,
	}

	var buf bytes.Buffer
	printer := NewPrinter("json", &buf)
	require.NoError(t, printer.PrintCredentialList([]*passkey.Credential{cred}))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(1), decoded["total"])

	creds := decoded["credentials"].([]interface{})
	first := creds[0].(map[string]interface{})
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(cred.ID), first["id"])
	assert.NotEmpty(t, first["last_used_at"])
}

func TestPrintError_JSON(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("json", &buf)

	require.NoError(t, printer.PrintError(assert.AnError))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "error", decoded["status"])
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "exactlyten", truncateString("exactlyten", 10))
	assert.Equal(t, "truncat...", truncateString("truncated value", 10))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}

func TestDecodeCredentialID(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xff, 0xfe}

	decoded, err := decodeCredentialID(base64.RawURLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	decoded, err = decodeCredentialID(base64.URLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	_, err = decodeCredentialID("!not base64!")
	assert.Error(t, err)
}
