package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// ErrUserNotFound is returned when a lookup matches no user.
var ErrUserNotFound = errors.New("user not found")

// UserRepository provides the lookups pkg/api's login handler needs
// against the users table.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository builds a UserRepository over client's pool.
func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{db: client.db}
}

// InsertUser persists a new user record.
func (r *UserRepository) InsertUser(ctx context.Context, u models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES ($1,$2,$3,$4)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByUsername returns the user with the given username, or
// ErrUserNotFound.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}
