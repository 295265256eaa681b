package core

import (
	"context"
	"time"
)

// User represents an account returned to handlers. It never carries the password hash.
type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

// UserRecord represents the row stored in the persistence layer.
type UserRecord struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

func (r UserRecord) user() User {
	return User{ID: r.ID, Username: r.Username, CreatedAt: r.CreatedAt}
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Create inserts a user and returns its id. A taken username yields ErrDuplicateUsername.
	Create(ctx context.Context, username, passwordHash string) (int64, error)
	// FindByUsername matches the username exactly. A miss yields ErrUserNotFound.
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	FindByID(ctx context.Context, id int64) (*UserRecord, error)
	Count(ctx context.Context) (int, error)
}

// AuthService defines the credential operations the HTTP layer depends on.
type AuthService interface {
	Register(ctx context.Context, username, password string) (User, error)
	Verify(ctx context.Context, username, password string) (User, error)
}
