// Package validator checks login/password pairs against the remote user
// directory.
package validator

import (
	"errors"

	"github.com/tabapp/tabapp/internal/identity"
)

// ErrNetwork marks a directory that could not be reached or answered with an
// error status. An empty match list is not an error.
var ErrNetwork = errors.New("directory unreachable")

// DirectoryUser is a directory entry as exposed by the debug listing.
type DirectoryUser struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Note  string `json:"note"`
}

// Record maps a directory entry to the Identity Record persisted on login.
// The directory carries no separate display name, so the login is used.
func (u DirectoryUser) Record() identity.Record {
	return identity.Record{Login: u.Login, DisplayName: u.Login}
}

func records(users []DirectoryUser) []identity.Record {
	out := make([]identity.Record, 0, len(users))
	for _, u := range users {
		out = append(out, u.Record())
	}
	return out
}
