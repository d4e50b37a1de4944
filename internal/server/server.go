// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware and
// routes, and decides:
//   - which backing store and image host the process talks to
//   - which URL patterns map to which handler functions
//   - what middleware runs on which routes
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and passes it to New, which builds
//
//	Store (sqlite | postgres | mongo) → AuthService, BookService → handlers
//	Image host (local | s3)          ↗
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes) rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/booklog/internal/auth"
	"github.com/sakif/booklog/internal/config"
	"github.com/sakif/booklog/internal/handler"
	"github.com/sakif/booklog/internal/imagehost"
	"github.com/sakif/booklog/internal/metrics"
	"github.com/sakif/booklog/internal/middleware"
	"github.com/sakif/booklog/internal/repository"
	mongoRepo "github.com/sakif/booklog/internal/repository/mongo"
	postgresRepo "github.com/sakif/booklog/internal/repository/postgres"
	sqliteRepo "github.com/sakif/booklog/internal/repository/sqlite"
	"github.com/sakif/booklog/internal/sanitize"
	"github.com/sakif/booklog/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store connection and the rate limiter's cleanup
// goroutine. Close releases both; Start calls it on the way out.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	store    repository.Store
	images   imagehost.Host
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry
	metrics  metrics.Recorder
}

// New builds a Server from cfg.
//
// IMPORT ALIAS:
// The repository backends are imported as sqliteRepo, postgresRepo and
// mongoRepo so they don't collide with the driver packages they wrap.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	images, err := openImageHost(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		images:   images,
		limiter:  middleware.NewRateLimiter(middleware.PerMinute(cfg.AuthRatePerMinute, cfg.AuthRateBurst), logger),
		registry: registry,
		metrics:  metrics.NewCollector(registry),
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// openStore connects to the backend named by cfg.StoreDriver.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		if cfg.DBPath != ":memory:" {
			// Create the data directory on first run (like `mkdir -p`).
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil

	case config.DriverPostgres:
		db, err := postgresRepo.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil

	case config.DriverMongo:
		db, err := mongoRepo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// openImageHost builds the image host named by cfg.ImageBackend. Remote
// image URLs are fetched through the decoder's SSRF-guarded client.
func openImageHost(ctx context.Context, cfg *config.Config) (imagehost.Host, error) {
	decoder := imagehost.NewDecoder(cfg.MaxImageBytes, cfg.ImageFetchTimeout)

	switch cfg.ImageBackend {
	case config.ImageBackendLocal:
		host, err := imagehost.NewLocal(cfg.UploadDir, cfg.PublicBaseURL, decoder)
		if err != nil {
			return nil, fmt.Errorf("opening image host: %w", err)
		}
		return host, nil

	case config.ImageBackendS3:
		host, err := imagehost.NewS3(ctx, imagehost.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
			Prefix:    cfg.S3Prefix,
		}, decoder)
		if err != nil {
			return nil, fmt.Errorf("opening image host: %w", err)
		}
		return host, nil

	default:
		return nil, fmt.Errorf("unknown image backend %q", cfg.ImageBackend)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz              → store liveness
// GET    /metrics              → Prometheus exposition
// GET    /uploads/*            → stored images (local backend only)
// POST   /api/auth/register    → create account          (rate limited)
// POST   /api/auth/login       → issue token             (rate limited)
// POST   /api/books            → create book             (token)
// GET    /api/books            → paginated listing       (token)
// GET    /api/books/user       → caller's books          (token)
// DELETE /api/books/{id}       → delete own book         (token)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID  assigns a unique ID to each request
// 2. RealIP     extracts the client IP from proxy headers (TRUST_PROXY_HEADERS only)
// 3. Logger     logs each request with timing info
// 4. Metrics    counts the request under its route pattern
// 5. Recoverer  turns a panic into a 500 that 3 and 4 still see
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords, err := auth.NewPasswordServiceWithCost(s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password service: %w", err)
	}

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	if s.config.TrustProxyHeaders {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	// === Operational Routes ===
	healthHandler := handler.NewHealthHandler(s.store, s.logger)
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", metrics.Handler(s.registry))

	if local, ok := s.images.(*imagehost.Local); ok {
		s.router.Handle(imagehost.UploadsPath+"*", local.Handler())
	}

	// === API Routes ===
	// DEPENDENCY CHAIN:
	//   store.Users() → AuthService → AuthHandler
	//   store.Books() + image host → BookService → BookHandler
	authService := service.NewAuthService(s.store.Users(), tokens, passwords, s.logger)
	bookService := service.NewBookService(s.store.Books(), s.images, sanitize.New(), s.metrics, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	bookHandler := handler.NewBookHandler(bookService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.RequestSize(s.config.MaxRequestBodySize))

		r.Route("/auth", func(r chi.Router) {
			r.Use(s.limiter.Middleware())
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
		})

		r.Route("/books", func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens, s.store.Users(), s.logger, s.metrics))
			r.Post("/", bookHandler.HandleCreate)
			r.Get("/", bookHandler.HandleList)
			r.Get("/user", bookHandler.HandleListMine)
			r.Delete("/{id}", bookHandler.HandleDelete)
		})
	})

	return nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the rate limiter and closes the store.
func (s *Server) Close() error {
	s.limiter.Stop()
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait up to SHUTDOWN_TIMEOUT for in-flight requests to finish
// 3. Close the store (flushes the SQLite WAL, drains the pg/mongo pools)
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("close failed", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.AppEnv),
			slog.String("store", s.config.StoreDriver),
			slog.String("images", s.config.ImageBackend),
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

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
