package directory

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/tabapp/tabapp/internal/logging"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryRepository(), logging.Discard(), WithBcryptCost(bcrypt.MinCost))
}

func TestRegisterAndLookup(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Login: "anna", Password: "secret", Note: "first"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if string(user.PasswordHash) == "secret" {
		t.Fatalf("expected password to be hashed")
	}

	matches, err := svc.Lookup(ctx, Credentials{Login: "anna", Password: "secret"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != user.ID {
		t.Fatalf("expected one match for anna, got %+v", matches)
	}
}

func TestLookupReturnsEmptyForMismatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Login: "anna", Password: "secret"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []Credentials{
		{Login: "anna", Password: "wrong"},
		{Login: "bob1", Password: "secret"},
		{Login: "anna", Password: ""},
	}
	for _, creds := range cases {
		matches, err := svc.Lookup(ctx, creds)
		if err != nil {
			t.Fatalf("lookup %+v: %v", creds, err)
		}
		if matches == nil || len(matches) != 0 {
			t.Fatalf("expected empty non-nil result for %+v, got %+v", creds, matches)
		}
	}
}

func TestRegisterRejectsShortInputAndDuplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Login: "ab", Password: "xx"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Login: "anna", Password: "secret"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Login: "anna", Password: "other"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestSeedSkipsExisting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Login: "anna", Password: "secret"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	users, err := ParseSeed([]byte(`
users:
  - login: anna
    pass: secret
  - login: bartek
    pass: haslo
    note: tester
`))
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}

	created, err := svc.Seed(ctx, users)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 created user, got %d", created)
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 users, got %d", len(all))
	}
}

func TestParseSeedRejectsMalformedYAML(t *testing.T) {
	if _, err := ParseSeed([]byte("users: [")); err == nil {
		t.Fatalf("expected decode error")
	}
}
