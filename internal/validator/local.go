package validator

import (
	"context"
	"fmt"

	"github.com/tabapp/tabapp/internal/directory"
	"github.com/tabapp/tabapp/internal/identity"
)

// Local validates against an in-process directory service.
type Local struct {
	svc *directory.Service
}

// NewLocal wraps a directory service.
func NewLocal(svc *directory.Service) *Local {
	return &Local{svc: svc}
}

// Validate implements the credential check without a network hop.
func (l *Local) Validate(ctx context.Context, login, password string) ([]identity.Record, error) {
	users, err := l.svc.Lookup(ctx, directory.Credentials{Login: login, Password: password})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return records(fromDirectory(users)), nil
}

// ListUsers returns every directory user.
func (l *Local) ListUsers(ctx context.Context) ([]DirectoryUser, error) {
	users, err := l.svc.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return fromDirectory(users), nil
}

func fromDirectory(users []directory.User) []DirectoryUser {
	out := make([]DirectoryUser, 0, len(users))
	for _, u := range users {
		p := u.Public()
		out = append(out, DirectoryUser{ID: p.ID, Login: p.Login, Note: p.Note})
	}
	return out
}
