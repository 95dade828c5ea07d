package auth

import (
	"log/slog"
	"net/http"
	"time"

	"gather/cmd/identity"
	"gather/cmd/internal/webapi"

	"github.com/go-playground/validator/v10"
)

const maxAuthBodyBytes = 1 << 20

// Handler wires the authentication endpoints to the identity store.
type Handler struct {
	log      *slog.Logger
	users    identity.Store
	tokens   *TokenManager
	resolver *Resolver
	validate *validator.Validate

	cookieSecure bool

	dummyHash string
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, users identity.Store, tokens *TokenManager, resolver *Resolver, cookieSecure bool) *Handler {
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:          log,
		users:        users,
		tokens:       tokens,
		resolver:     resolver,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		cookieSecure: cookieSecure,
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := identity.HashPassword("dummy-password-for-timing-only", identity.DefaultArgon2idParams()); err == nil {
		h.dummyHash = hash
	}

	return h
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.Handle("GET /api/auth/me", h.resolver.RequireUser(http.HandlerFunc(h.handleMe)))

	mux.Handle("GET /api/admin/users", h.resolver.RequireAdmin(http.HandlerFunc(h.handleListUsers)))
	mux.Handle("PUT /api/admin/users/{id}/role", h.resolver.RequireAdmin(http.HandlerFunc(h.handleUpdateRole)))
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := webapi.DecodeJSON(w, r, maxAuthBodyBytes, &req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "name, email and a password of at least 8 characters are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     identity.RoleUser,
		Now:      now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			webapi.WriteError(w, http.StatusConflict, "conflict", "email already registered")
		case identity.IsInvalidInput(err):
			webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		default:
			h.log.Error("auth.register.fail", "err", err)
			webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	if err := h.issueSession(w, u, now); err != nil {
		h.log.Error("auth.register.token.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.register", "user_id", u.ID)
	webapi.WriteJSON(w, http.StatusCreated, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := webapi.DecodeJSON(w, r, maxAuthBodyBytes, &req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	ua, err := h.users.GetUserAuthByEmail(ctx, req.Email)
	if err != nil {
		// Timing resistance: perform a dummy verify when user is missing.
		if h.dummyHash != "" {
			_, _ = identity.VerifyPassword(req.Password, h.dummyHash)
		}
		if identity.IsNotFound(err) {
			webapi.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("auth.login.lookup.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	okPw, err := identity.VerifyPassword(req.Password, ua.PasswordHash)
	if err != nil || !okPw {
		webapi.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	if err := h.issueSession(w, ua.User, now); err != nil {
		h.log.Error("auth.login.token.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.login", "user_id", ua.User.ID)
	webapi.WriteJSON(w, http.StatusOK, meResponse{User: toUserResponse(ua.User)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFrom(r.Context())
	if !ok {
		webapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	webapi.WriteJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

// ---- cookies ----

func (h *Handler) issueSession(w http.ResponseWriter, u identity.User, now time.Time) error {
	token, exp, err := h.tokens.Issue(u, now)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(h.tokens.TTL() / time.Second),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
