// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer: it opens the store, builds services and
// handlers from config.Config, and decides which middleware runs on which
// routes. main.go stays minimal.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Store (sqlite | postgres) → services → handlers → routes
//	             → revocations (memory | redis) → auth.Sessions ↗
//
// All dependencies are assembled in New/setupRoutes (the composition root)
// rather than scattered across the codebase.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/todolists/internal/auth"
	"github.com/sakif/todolists/internal/config"
	"github.com/sakif/todolists/internal/handler"
	"github.com/sakif/todolists/internal/metrics"
	"github.com/sakif/todolists/internal/middleware"
	"github.com/sakif/todolists/internal/repository"
	"github.com/sakif/todolists/internal/repository/postgres"
	sqliteRepo "github.com/sakif/todolists/internal/repository/sqlite"
	"github.com/sakif/todolists/internal/service"
	"github.com/sakif/todolists/web"
)

// connectTimeout bounds how long startup waits for Postgres and Redis.
const connectTimeout = 10 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store and the optional Redis client. Both are closed
// after the HTTP server has drained, in Start, or by Close when the server
// never started.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	store   repository.Store
	redis   *redis.Client // nil when logouts are tracked in memory
	metrics *metrics.Metrics
}

// New creates a Server from cfg. It connects to every backend up front so
// misconfiguration fails at startup rather than on the first request.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		metrics: metrics.New(),
	}

	revocations, err := s.openRevocations(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if err := s.setupRoutes(revocations); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.PostgresDSN)
	case config.DriverSQLite, "":
		return sqliteRepo.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// openRevocations picks where logged-out sessions are remembered. In memory
// they are forgotten on restart; in Redis they survive it and are shared by
// every instance.
func (s *Server) openRevocations(ctx context.Context) (auth.RevocationStore, error) {
	rc := s.config.Redis
	if rc.Addr == "" {
		return auth.NewMemoryRevocations(), nil
	}
	rdb, err := auth.NewRedisClient(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return nil, err
	}
	s.redis = rdb
	return auth.NewRedisRevocations(rdb), nil
}

// jwtSecret returns the configured secret, or a random one that lives as
// long as the process.
func (s *Server) jwtSecret() (string, error) {
	if s.config.Auth.JWTSecret != "" {
		return s.config.Auth.JWTSecret, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	s.logger.Warn("auth.jwt_secret not set, using a random secret; sessions end on restart")
	return hex.EncodeToString(b), nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET       /                                  → home page
//	POST      /lists/new/                        → create list
//	GET/POST  /lists/{listID}/                   → view list / add item
//	POST      /lists/{listID}/share/             → share (login required)
//	POST      /lists/{listID}/items/{itemID}/delete/
//	GET       /lists/users/{email}/              → My lists
//	GET/POST  /login/   GET /logout/   GET/POST /signup/
//	GET       /login/github/, /login/github/callback/  (when configured)
//	GET       /api/lists/{listID}, /api/users/{email}/lists
//	GET       /static/*, /healthz, /metrics
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID, RealIP, Recoverer (chi built-ins)
//  2. metrics, which reads the matched route after the handler ran
//  3. LoadSession, so everything after it knows the user
//  4. Logger, which logs the request ID and user ID
func (s *Server) setupRoutes(revocations auth.RevocationStore) error {
	cfg := s.config

	secret, err := s.jwtSecret()
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(secret, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	sessions := auth.NewSessions(tokens, revocations, cfg.Auth.SecureCookies)

	// === Services ===
	passwords := auth.NewPasswordServiceWithCost(cfg.Auth.BcryptCost)
	users := service.NewAuthService(s.store, passwords, auth.NewPasswordPolicy(), s.metrics, s.logger)
	lists := service.NewListService(s.store, s.metrics, s.logger)
	sharing := service.NewSharingService(s.store, s.store,
		service.SharingOptions{OwnerOnly: cfg.Sharing.OwnerOnly}, s.metrics, s.logger)

	// === Handlers ===
	renderer, err := handler.NewRenderer(web.Templates(), s.logger)
	if err != nil {
		return err
	}

	var github *auth.GitHubProvider
	if cfg.GitHub.Enabled() {
		callback := cfg.GitHub.CallbackURL
		if callback == "" {
			callback = fmt.Sprintf("http://localhost:%d/login/github/callback/", cfg.Server.Port)
		}
		github = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, callback)
	}

	site := handler.NewSite(renderer, users, github != nil, s.logger)
	listHandler := handler.NewListHandler(site, lists, sharing)
	authHandler := handler.NewAuthHandler(site, sessions, github)
	apiHandler := handler.NewAPIHandler(lists, users, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(auth.LoadSession(sessions, s.logger))
	s.router.Use(middleware.Logger(s.logger))

	// === Ambient ===
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.Static())))
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	s.router.Handle("/metrics", s.metrics.Handler())

	// === Pages ===
	s.router.Get("/", listHandler.HandleHome)
	s.router.Route("/lists", func(r chi.Router) {
		r.Post("/new/", listHandler.HandleNewList)
		r.Get("/users/{email}/", listHandler.HandleMyLists)
		r.Get("/{listID}/", listHandler.HandleViewList)
		r.Post("/{listID}/", listHandler.HandleAddItem)
		r.With(auth.RequireLogin(handler.LoginURL)).Post("/{listID}/share/", listHandler.HandleShareList)
		r.Post("/{listID}/items/{itemID}/delete/", listHandler.HandleDeleteItem)
	})

	s.router.Get("/login/", authHandler.HandleLoginPage)
	s.router.Post("/login/", authHandler.HandleLogin)
	s.router.Get("/logout/", authHandler.HandleLogout)
	s.router.Get("/signup/", authHandler.HandleSignupPage)
	s.router.Post("/signup/", authHandler.HandleSignup)
	if github != nil {
		s.router.Get("/login/github/", authHandler.HandleGitHubLogin)
		s.router.Get("/login/github/callback/", authHandler.HandleGitHubCallback)
	}

	// === JSON API ===
	s.router.Route("/api", func(r chi.Router) {
		// go-chi/cors allows every origin when AllowedOrigins is empty.
		if len(cfg.Server.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: cfg.Server.AllowedOrigins,
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type"},
				MaxAge:         300,
			}))
		}
		r.Get("/lists/{listID}", apiHandler.HandleGetList)
		r.Get("/users/{email}/lists", apiHandler.HandleUserLists)
	})

	return nil
}

// Handler returns the root handler, for tests and for embedding the app in
// another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store and the Redis client.
func (s *Server) Close() error {
	var errs []error
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Start runs the HTTP server until SIGINT or SIGTERM.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests (server.shutdown_timeout)
//  3. Close the store and Redis
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing resources", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Database.Driver),
			slog.Bool("redis", s.redis != nil),
			slog.Bool("github", s.config.GitHub.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
