package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gather/cmd/identity/ids"
)

// InMemoryStore is the dev/test fallback when no database is configured.
type InMemoryStore struct {
	mu      sync.Mutex
	byID    map[string]*storedUser
	byEmail map[string]string // normalized email -> user id
}

type storedUser struct {
	user User
	hash string
}

// NewInMemoryStore constructs an in-memory user store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[string]*storedUser),
		byEmail: make(map[string]string),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// CreateUser registers a new user with a unique normalized email.
func (s *InMemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	name := NormalizeName(in.Name)
	emailNorm := NormalizeEmail(in.Email)
	if name == "" || emailNorm == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "name and email are required"}
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	if !ValidRole(role) {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown role"}
	}

	hash, err := HashPassword(in.Password, DefaultArgon2idParams())
	if err != nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[emailNorm]; taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	u := User{
		ID:        id,
		Name:      name,
		Email:     strings.TrimSpace(in.Email),
		EmailNorm: emailNorm,
		Role:      role,
		CreatedAt: now,
	}
	s.byID[id] = &storedUser{user: u, hash: hash}
	s.byEmail[emailNorm] = id
	return u, nil
}

// GetUserByID returns the user or ErrNotFound.
func (s *InMemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	su, ok := s.byID[id]
	if !ok {
		return User{}, OpError{Op: "identity.GetUserByID", Kind: ErrNotFound}
	}
	return su.user, nil
}

// GetUserAuthByEmail returns the user plus credential hash, or ErrNotFound.
func (s *InMemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, OpError{Op: "identity.GetUserAuthByEmail", Kind: ErrNotFound}
	}
	su := s.byID[id]
	return UserAuth{User: su.user, PasswordHash: su.hash}, nil
}

// ListUsers returns all users ordered by creation time descending.
func (s *InMemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]User, 0, len(s.byID))
	for _, su := range s.byID {
		out = append(out, su.user)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateUserRole sets the role for a user.
func (s *InMemoryStore) UpdateUserRole(ctx context.Context, id, role string) (User, error) {
	const op = "identity.UpdateUserRole"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if !ValidRole(role) {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown role"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	su, ok := s.byID[id]
	if !ok {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	su.user.Role = role
	return su.user, nil
}
