package identity

import (
	"context"
	"time"
)

// User is the public view of an account. It never carries the password hash.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAuth pairs a user with the stored password hash for credential checks.
// It must not be logged or serialized.
type UserAuth struct {
	User
	PasswordHash string `json:"-"`
}

// CreateUserInput provisions a user with an already-hashed password.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Role         Role
	Now          time.Time
}

// Store is the credential lookup boundary used by login and by protected handlers.
type Store interface {
	// UserAuthByEmail looks up a user by normalized email.
	// Returns ErrNotFound when no such user exists.
	UserAuthByEmail(ctx context.Context, email string) (UserAuth, error)
	// UserByID returns ErrNotFound when no such user exists.
	UserByID(ctx context.Context, id string) (User, error)
}

// Provisioner creates users. Only administrative tooling needs it.
type Provisioner interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
}
