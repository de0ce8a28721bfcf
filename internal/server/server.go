// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes and owns the resources that outlive a single request: the database
// and the websocket hub.
//
// DEPENDENCY INJECTION FLOW:
//
//	sqlite.DB ──► AuthService ─────────► AuthHandler
//	          ├─► PostService ─────────► PostHandler
//	          └─► InteractionService ──► InteractionHandler
//	                   │ (after commit)
//	                   ▼
//	              notify.Notifier ──► realtime.Hub ◄── realtime.Gate (/ws)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/starblog/internal/auth"
	"github.com/sakif/starblog/internal/config"
	"github.com/sakif/starblog/internal/handler"
	"github.com/sakif/starblog/internal/middleware"
	"github.com/sakif/starblog/internal/notify"
	"github.com/sakif/starblog/internal/realtime"
	sqliteRepo "github.com/sakif/starblog/internal/repository/sqlite"
	"github.com/sakif/starblog/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection and closes it after the HTTP
// server has drained.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	hub    *realtime.Hub
}

// New opens the database at cfg.DBPath and wires the server around it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s, err := NewWithDB(cfg, logger, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wires the server around an already-open database. The server
// takes ownership of db.
func NewWithDB(cfg config.Config, logger *slog.Logger, db *sqliteRepo.DB) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		hub:    realtime.NewHub(logger),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the live connection registry.
func (s *Server) Hub() *realtime.Hub { return s.hub }

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /health
//	POST   /auth/register
//	POST   /auth/login
//	GET    /auth/google               (only when Google is configured)
//	GET    /auth/google/callback      (only when Google is configured)
//	GET    /auth/me                   [auth]
//	PUT    /users/password            [auth]
//	POST   /posts                     [auth]
//	GET    /posts/{postId}            [optional auth]
//	GET    /posts/{postId}/comments
//	POST   /posts/{postId}/like       [auth]
//	POST   /posts/{postId}/comments   [auth]
//	PUT    /comments/{commentId}      [auth]
//	DELETE /comments/{commentId}      [auth]
//	GET    /ws                        (token in the handshake frame)
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID, so every log line of a request shares an ID
//  2. RealIP
//  3. Logger
//  4. Recoverer, inside the logger so a recovered panic is logged as a 500
//  5. CORS for the frontend origin
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return err
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.config.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// === Services ===
	notifier := notify.New(s.hub, s.logger)
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
	postService := service.NewPostService(s.db, s.logger)
	interactionService := service.NewInteractionService(s.db, notifier, s.logger)

	// === Handlers ===
	validate := handler.NewRequestValidator()

	var google handler.GoogleOAuth
	if s.config.GoogleEnabled() {
		google = auth.NewGoogleProvider(s.config.GoogleClientID, s.config.GoogleClientSecret, s.config.GoogleCallbackURL)
	} else {
		s.logger.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set; Google sign-in is disabled")
	}

	authHandler := handler.NewAuthHandler(authService, google, validate, s.config.FrontendURL, s.logger)
	postHandler := handler.NewPostHandler(postService, validate, s.logger)
	interactionHandler := handler.NewInteractionHandler(interactionService, s.logger)

	gate := realtime.NewGate(s.hub, tokens, s.logger, realtime.GateConfig{
		OriginPatterns:   originPatterns(s.config.FrontendURL),
		HandshakeTimeout: s.config.HandshakeTimeout,
	})

	requireAuth := auth.RequireAuth(tokens, s.logger)

	// === Routes ===
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		if google != nil {
			r.Get("/google", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
		}
		r.With(requireAuth).Get("/me", authHandler.HandleMe)
	})

	s.router.With(requireAuth).Put("/users/password", authHandler.HandleChangePassword)

	s.router.Route("/posts", func(r chi.Router) {
		r.With(requireAuth).Post("/", postHandler.HandleCreate)
		r.With(auth.OptionalAuth(tokens)).Get("/{postId}", postHandler.HandleGet)
		r.Get("/{postId}/comments", postHandler.HandleListComments)
		r.With(requireAuth).Post("/{postId}/like", interactionHandler.HandleToggleLike)
		r.With(requireAuth).Post("/{postId}/comments", interactionHandler.HandleCreateComment)
	})

	s.router.Route("/comments", func(r chi.Router) {
		r.Use(requireAuth)
		r.Put("/{commentId}", interactionHandler.HandleUpdateComment)
		r.Delete("/{commentId}", interactionHandler.HandleDeleteComment)
	})

	s.router.Handle("/ws", gate)

	return nil
}

// originPatterns turns the frontend URL into the host pattern the websocket
// origin check expects.
func originPatterns(frontendURL string) []string {
	u, err := url.Parse(frontendURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (ShutdownTimeout)
//  3. Close the database connection (flushes WAL, releases file lock)
//
// Open websockets are hijacked and not tracked by Shutdown; they end when
// the process exits and clients reconnect.
func (s *Server) Run(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Websockets stream for as long as they are open; per-write
		// deadlines live in the gate.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
