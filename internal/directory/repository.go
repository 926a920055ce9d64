package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound is returned when no entry matches a login.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering a login that is already taken.
	ErrUserExists = errors.New("user exists")
)

// Repository persists directory users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByLogin(ctx context.Context, login string) (User, error)
	List(ctx context.Context) ([]User, error)
}

const uniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed directory repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema applies pending directory migrations.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	return Migrate(ctx, r.db)
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO directory_users (id, login, pass_hash, note, created_at)
        VALUES ($1, $2, $3, $4, $5)`, userID, user.Login, user.PasswordHash, user.Note, user.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrUserExists
	}
	return err
}

// FindByLogin fetches a user by login.
func (r *PostgresRepository) FindByLogin(ctx context.Context, login string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, login, pass_hash, note, created_at FROM directory_users WHERE login = $1`, login)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

// List returns every user ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, login, pass_hash, note, created_at FROM directory_users ORDER BY created_at, login`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		user      User
	)
	if err := row.Scan(&id, &user.Login, &user.PasswordHash, &user.Note, &createdAt); err != nil {
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
