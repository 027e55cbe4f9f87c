// Package models defines the core data structures shared by the TapKeeper
// client and the reference backend.
package models

// User represents an account protected by a password and a bound RFID tag.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// Username is the login name chosen by the user.
	Username string
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte
	// RFIDUID is the identifier of the tag bound at registration.
	RFIDUID string
}

// Credential is one vault entry.
type Credential struct {
	// ID is assigned by the backend and never changes.
	ID string `json:"id"`
	// Name is the display label; required.
	Name string `json:"name"`
	// Username is optional.
	Username string `json:"username"`
	// Password is the stored secret; required.
	Password string `json:"password"`
	// URL is optional.
	URL string `json:"url"`
	// Notes is optional.
	Notes string `json:"notes"`
}

// CredentialDraft holds the user-entered fields of a credential that has
// not been stored yet.
type CredentialDraft struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	URL      string `json:"url"`
	Notes    string `json:"notes"`
}

// Credential converts the draft into a Credential with the given id.
func (d CredentialDraft) Credential(id string) Credential {
	return Credential{
		ID:       id,
		Name:     d.Name,
		Username: d.Username,
		Password: d.Password,
		URL:      d.URL,
		Notes:    d.Notes,
	}
}
