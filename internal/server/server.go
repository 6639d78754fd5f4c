package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/netsync/apiserver/config"
	"github.com/netsync/apiserver/internal/access"
	"github.com/netsync/apiserver/internal/credentials"
	"github.com/netsync/apiserver/internal/handlers"
	"github.com/netsync/apiserver/internal/metrics"
	"github.com/netsync/apiserver/internal/notify"
	"github.com/netsync/apiserver/internal/services"
	"github.com/netsync/apiserver/internal/store"
	"github.com/netsync/apiserver/internal/token"
)

// Server wraps the HTTP server.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
	components *Components
}

// Components are the assembled core collaborators, shared by the server
// and the operator commands.
type Components struct {
	Identity *services.IdentityService
	Codec    *token.Codec
	Guard    *access.Guard
	Notifier *notify.Notifier
	Metrics  *metrics.Metrics

	closers []func() error
}

// Close stops the notifier, draining queued messages, then releases the
// store and broker connections.
func (c *Components) Close() error {
	return c.Shutdown(context.Background())
}

// Shutdown is Close bounded by ctx. Messages still queued when ctx is done
// are dropped.
func (c *Components) Shutdown(ctx context.Context) error {
	var errs []error
	if c.Notifier != nil {
		if err := c.Notifier.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain notifier: %w", err))
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewComponents opens the account store and the notification sender named
// by cfg and builds the identity service on top of them.
func NewComponents(ctx context.Context, cfg config.Config, log *slog.Logger) (*Components, error) {
	c := &Components{Metrics: metrics.New()}

	accounts, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	c.closers = append(c.closers, closeStore)

	sender, closeSender, err := notify.NewSenderFromConfig(ctx, cfg, cfg.Notify.Driver, os.Stdout, log.With("component", "notify"))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("notify %s: %w", cfg.Notify.Driver, err)
	}
	c.closers = append(c.closers, closeSender)

	c.Codec, err = token.NewCodec(cfg.Auth)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Guard = access.NewGuard(c.Codec)

	c.Notifier = notify.NewNotifier(sender, notify.Options{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		SendTimeout: cfg.Notify.SendTimeout,
	}, log.With("component", "notify"), c.Metrics)

	c.Identity = services.NewIdentityService(services.IdentityDeps{
		Accounts: accounts,
		Hasher:   credentials.NewHasher(credentials.ParamsFromConfig(cfg.Argon2)),
		Tokens:   c.Codec,
		Notifier: c.Notifier,
		Logger:   log.With("component", "identity"),
		Metrics:  c.Metrics,
	}, cfg.Auth.OTPTTL)

	return c, nil
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	c, err := NewComponents(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	router := NewRouter(c, log)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
		components: c,
	}, nil
}

// NewRouter mounts the API on a chi router.
func NewRouter(c *Components, log *slog.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/health", handlers.Health)
	router.Method(http.MethodGet, "/metrics", c.Metrics.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, c.Identity, log)
	})
	router.Route("/dashboard", func(r chi.Router) {
		handlers.DashboardRouter(r, c.Guard)
	})
	return router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones, then drains
// the notification queue and closes the store. Both phases share ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if cerr := s.components.Shutdown(ctx); cerr != nil {
		s.log.Error("shutdown", "error", cerr)
	}
	return err
}
