package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"sessiond/cmd/identity/ids"
)

// MemoryStore is an in-process Store used for development, single-admin
// deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]UserAuth
	byEmail map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]UserAuth),
		byEmail: make(map[string]string),
	}
}

// UserAuthByEmail implements Store.
func (s *MemoryStore) UserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.UserAuthByEmail"
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	norm := NormalizeEmail(email)
	if norm == "" {
		return UserAuth{}, invalid(op, "missing email")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[norm]
	if !ok {
		return UserAuth{}, OpError{Op: op, Kind: ErrNotFound}
	}
	return s.byID[id], nil
}

// UserByID implements Store.
func (s *MemoryStore) UserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.UserByID"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ua, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	return ua.User, nil
}

// CreateUser implements Provisioner.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	email := strings.TrimSpace(in.Email)
	if !ValidEmail(email) {
		return User{}, invalid(op, "invalid email")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, invalid(op, "missing password hash")
	}
	if !in.Role.Valid() {
		return User{}, invalid(op, "invalid role")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	norm := NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[norm]; exists {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	u := User{ID: id, Email: email, Role: in.Role, CreatedAt: now.UTC()}
	s.byID[id] = UserAuth{User: u, PasswordHash: in.PasswordHash}
	s.byEmail[norm] = id
	return u, nil
}
