package directory

import "time"

// User is a directory entry. PasswordHash never leaves the service.
type User struct {
	ID           string
	Login        string
	PasswordHash []byte
	Note         string
	CreatedAt    time.Time
}

// PublicUser is the wire representation returned by /users.
type PublicUser struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Note  string `json:"note"`
}

// Public strips secret fields from u.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Login: u.Login, Note: u.Note}
}

// Credentials is a login/password lookup key.
type Credentials struct {
	Login    string
	Password string
}

// RegisterInput captures data required to create a directory entry.
type RegisterInput struct {
	Login    string `json:"login" yaml:"login"`
	Password string `json:"pass" yaml:"pass"`
	Note     string `json:"note" yaml:"note"`
}
