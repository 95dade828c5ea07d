// Package app wires the Gather server runtime: config, logging, stores,
// HTTP routes, and the realtime chat gateways.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gather/cmd/identity"
	"gather/cmd/internal/auth"
	"gather/cmd/internal/chat"
	"gather/cmd/internal/events"
	"gather/cmd/internal/upload"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// stores bundles the persistence backends so lifecycle handling stays
// in one place.
type stores struct {
	users    identity.Store
	events   events.Store
	messages chat.MessageStore

	pool *pgxpool.Pool
}

func (s *stores) close() {
	if s == nil {
		return
	}
	if s.users != nil {
		_ = s.users.Close()
	}
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.messages != nil {
		_ = s.messages.Close()
	}
	// The pool last; the Postgres stores borrow it.
	if s.pool != nil {
		s.pool.Close()
	}
}

// App is the Gather server runtime.
type App struct {
	cfg Config
	log *slog.Logger

	st        *stores
	dbEnabled bool

	metricsReg *prometheus.Registry

	authHandler   *auth.Handler
	eventsHandler *events.Handler
	chatHandler   *chat.Handler
	uploadHandler *upload.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	st, dbEnabled, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		if dbEnabled {
			st.close()
			return nil, errors.New("GATHER_TOKEN_SECRET is required when a database is configured")
		}
		// Dev mode: sessions do not survive a restart anyway.
		secret = randomSecret()
		log.Warn("auth.token_secret.generated", "reason", "GATHER_TOKEN_SECRET not set")
	}

	tokens, err := auth.NewTokenManager(secret, cfg.TokenTTL)
	if err != nil {
		st.close()
		return nil, err
	}
	resolver := auth.NewResolver(log, tokens, st.users)

	metricsReg := prometheus.NewRegistry()
	registry := chat.NewRegistry(log, chat.NewMetrics(metricsReg))

	chatHandler := chat.NewHandler(log, registry, st.messages, st.events, resolver,
		chat.WithSendQueueSize(cfg.ChatQueueSize),
		chat.WithKeepalive(cfg.ChatKeepalive),
		chat.WithAllowedOrigins(cfg.AllowedOrigins),
	)

	uploadHandler, err := upload.NewHandler(log, cfg.UploadDir, resolver)
	if err != nil {
		st.close()
		return nil, err
	}

	return &App{
		cfg:           cfg,
		log:           log,
		st:            st,
		dbEnabled:     dbEnabled,
		metricsReg:    metricsReg,
		authHandler:   auth.NewHandler(log, st.users, tokens, resolver, cfg.CookieSecure),
		eventsHandler: events.NewHandler(log, st.events, resolver),
		chatHandler:   chatHandler,
		uploadHandler: uploadHandler,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	a.registerHTTP(mux)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),

		// No WriteTimeout: the SSE stream is a deliberately long-lived
		// response and a server-wide write deadline would sever it.
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.st.close()
	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStores decides between Postgres-backed persistence and in-memory dev stores.
func newStores(ctx context.Context, cfg Config, log *slog.Logger) (*stores, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_stores")
		return &stores{
			users:    identity.NewInMemoryStore(),
			events:   events.NewInMemoryStore(),
			messages: chat.NewInMemoryStore(),
		}, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, false, err
	}

	log.Info("db.enabled.postgres_stores", "schema", cfg.DBSchema)

	// Ownership model: app owns the pool lifecycle; the stores' Close()
	// methods are no-ops.
	users, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, false, err
	}
	evs, err := events.NewPostgresStore(pool, events.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, false, err
	}
	msgs, err := chat.NewPostgresStore(pool, chat.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, false, err
	}

	return &stores{users: users, events: evs, messages: msgs, pool: pool}, true, nil
}

func randomSecret() []byte {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	out := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(out, b)
	return out
}
