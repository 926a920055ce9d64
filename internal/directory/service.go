package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tabapp/tabapp/internal/identity"
	"github.com/tabapp/tabapp/internal/logging"
)

// ErrInvalidInput is returned when a registration violates the login policy.
var ErrInvalidInput = errors.New("login must be longer than 3 characters and password at least 3")

// Service manages the user directory.
type Service struct {
	repo   Repository
	logger *slog.Logger
	cost   int
}

// Option customises a Service.
type Option func(*Service)

// WithBcryptCost overrides the bcrypt cost, mainly to keep tests fast.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// NewService creates a new directory service.
func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{repo: repo, logger: logging.OrDiscard(logger), cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user and stores a hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	login := strings.TrimSpace(in.Login)
	if !identity.Submittable(login, in.Password) {
		return User{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		Login:        login,
		PasswordHash: hash,
		Note:         in.Note,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// Lookup returns the users matching both login and password: an empty slice
// for an unknown login or a wrong password, and an error only when the
// repository fails.
func (s *Service) Lookup(ctx context.Context, creds Credentials) ([]User, error) {
	if creds.Login == "" || creds.Password == "" {
		return []User{}, nil
	}
	user, err := s.repo.FindByLogin(ctx, creds.Login)
	if errors.Is(err, ErrUserNotFound) {
		return []User{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return []User{}, nil
	}
	return []User{user}, nil
}

// List returns every user in the directory.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Seed registers the given users, skipping logins that already exist.
func (s *Service) Seed(ctx context.Context, users []RegisterInput) (int, error) {
	created := 0
	for _, in := range users {
		_, err := s.Register(ctx, in)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrUserExists):
			s.logger.Debug("seed user already present", "login", in.Login)
		default:
			return created, fmt.Errorf("seed %q: %w", in.Login, err)
		}
	}
	return created, nil
}
