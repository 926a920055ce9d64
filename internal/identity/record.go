// Package identity defines the Identity Record: the persisted representation
// of who last logged in successfully, and the login-surface input policy.
package identity

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// PersistKey is the secure store key holding the serialized Record.
const PersistKey = "loggedUser"

const (
	minLoginLength    = 4
	minPasswordLength = 3
)

// ErrEmptyLogin is returned when a Record without a login would be persisted.
var ErrEmptyLogin = errors.New("identity login is empty")

// Record is replaced wholesale on each successful login and never mutated in place.
type Record struct {
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
	AuthToken   string `json:"authToken,omitempty"`
}

// Validate checks the invariants a persisted Record must hold.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Login) == "" {
		return ErrEmptyLogin
	}
	return nil
}

// Name is the value shown as the session display name.
func (r Record) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.Login
}

// Submittable reports whether a login/password pair enables the explicit
// submit action: a trimmed login longer than three characters and a password
// of at least three characters.
func Submittable(login, password string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(login)) >= minLoginLength &&
		utf8.RuneCountInString(password) >= minPasswordLength
}
