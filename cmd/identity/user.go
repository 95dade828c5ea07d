package identity

import (
	"context"
	"time"
)

// Role values (stored verbatim; keep wire-stable).
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	return r == RoleUser || r == RoleAdmin
}

// User is Gather's canonical security principal.
type User struct {
	ID        string
	Name      string
	Email     string
	EmailNorm string
	Role      string
	CreatedAt time.Time
}

// UserAuth pairs a user with its stored credential hash.
// IMPORTANT: the hash never leaves the auth path; User is the API-safe shape.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a user registration request.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Now      time.Time
}

// Store is the user persistence boundary.
type Store interface {
	// CreateUser registers a new user. Returns a ConflictError when the
	// normalized email is already taken, ErrInvalidInput on bad input.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// GetUserByID returns the user or ErrNotFound.
	GetUserByID(ctx context.Context, id string) (User, error)

	// GetUserAuthByEmail returns the user plus credential hash, or ErrNotFound.
	// Lookup is by normalized email.
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)

	// ListUsers returns all users ordered by creation time descending.
	ListUsers(ctx context.Context) ([]User, error)

	// UpdateUserRole sets the role for a user and returns the updated
	// record; ErrNotFound for unknown ids, ErrInvalidInput for unknown roles.
	UpdateUserRole(ctx context.Context, id, role string) (User, error)

	Close() error
}
