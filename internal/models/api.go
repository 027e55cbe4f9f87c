package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UserID identifies a user on the wire. Backends may send it either as a
// JSON number or as a JSON string; both decode into the same value and
// numeric ids are encoded back as numbers.
type UserID string

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// MarshalJSON encodes ids in canonical integer form ("42", "-7") as numbers
// and everything else, including "007" or "+5", as strings.
func (id UserID) MarshalJSON() ([]byte, error) {
	if isCanonicalInt(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// isCanonicalInt reports whether s is an integer JSON number exactly as a
// backend would have written it: no sign other than a leading minus, no
// leading zeros and no "-0".
func isCanonicalInt(s string) bool {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" || (digits[0] == '0' && (len(digits) > 1 || len(s) > 1)) {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// LoginResponse is the body returned by POST /api/auth/login.
type LoginResponse struct {
	Success bool   `json:"success"`
	UserID  UserID `json:"user_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// ScanResponse is the body returned by the token scan endpoint. An empty
// UID means no tag has been presented yet.
type ScanResponse struct {
	UID *string `json:"uid"`
}

// VerifyRequest is the body of POST /api/auth/rfid-verify.
type VerifyRequest struct {
	UserID  UserID `json:"user_id"`
	RFIDUID string `json:"rfid_uid"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
	RFIDUID  string `json:"rfid_uid"`
}

// TestTokenRequest is the body of POST /api/auth/rfid-test.
type TestTokenRequest struct {
	UID string `json:"uid"`
}

// StatusResponse is the generic {success, message} envelope.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// VaultListResponse is the body returned by GET /api/vault.
type VaultListResponse struct {
	Success     bool         `json:"success"`
	Credentials []Credential `json:"credentials"`
	Message     string       `json:"message,omitempty"`
}
