package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"gather/cmd/identity"
	"gather/cmd/internal/webapi"
)

// ErrUnauthenticated is returned when a request carries no usable
// session token.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Resolver turns the session cookie on a request into a stored user.
type Resolver struct {
	log    *slog.Logger
	tokens *TokenManager
	users  identity.Store
}

// NewResolver constructs a Resolver.
func NewResolver(log *slog.Logger, tokens *TokenManager, users identity.Store) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{log: log, tokens: tokens, users: users}
}

// Authenticate resolves the request's session cookie to a user. The
// user record is re-read from the store so revoked accounts and role
// changes are observed immediately.
func (rv *Resolver) Authenticate(r *http.Request) (identity.User, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return identity.User{}, ErrUnauthenticated
	}

	claims, err := rv.tokens.Parse(c.Value)
	if err != nil {
		return identity.User{}, ErrUnauthenticated
	}

	u, err := rv.users.GetUserByID(r.Context(), claims.UserID())
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.User{}, ErrUnauthenticated
		}
		return identity.User{}, err
	}
	return u, nil
}

// RequireUser rejects unauthenticated requests with 401 and otherwise
// passes the request on with the user attached to its context.
func (rv *Resolver) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := rv.Authenticate(r)
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				webapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			rv.log.Error("auth.resolve.fail", "err", err)
			webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), u)))
	})
}

// RequireAdmin is RequireUser plus an admin role check.
func (rv *Resolver) RequireAdmin(next http.Handler) http.Handler {
	return rv.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok || u.Role != identity.RoleAdmin {
			webapi.WriteError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}
