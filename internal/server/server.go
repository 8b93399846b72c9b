// Package server is the composition root: it opens the database, builds the
// services and handlers, and maps URLs to them.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB → services → handlers → chi router
//
// Each layer only receives what it needs: services get repository
// interfaces, handlers get services, and nothing below this package knows
// about routes.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/musicrec/internal/auth"
	"github.com/sakif/musicrec/internal/config"
	"github.com/sakif/musicrec/internal/flash"
	"github.com/sakif/musicrec/internal/handler"
	"github.com/sakif/musicrec/internal/middleware"
	sqliteRepo "github.com/sakif/musicrec/internal/repository/sqlite"
	"github.com/sakif/musicrec/internal/service"
	"github.com/sakif/musicrec/web"
)

// Server owns the router and the database connection.
type Server struct {
	router chi.Router
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database named in cfg, applies migrations and wires every
// route. The caller must Close the server (Start does it on shutdown).
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	path, err := cfg.Database.SQLitePath()
	if err != nil {
		return nil, err
	}

	db, err := sqliteRepo.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET       /, /sobre                       public pages
//	GET/POST  /login, /register               anonymous only, rate limited POST
//	GET       /auth/github/{login,callback}   optional OAuth sign-in
//	GET       /logout                         login required
//	GET/POST  /escolher-gostos, /perfil       login required
//	POST      /perfil/excluir                 login required
//	*         /admin/...                      admin only
//	GET       /api/artists/search             login required, CORS when configured
//	GET       /metrics                        admin or metrics bearer token
//	GET       /healthz, /static/*
//
// MIDDLEWARE ORDER:
//  1. RequestID, RealIP: request id for the log line, client IP for rate limits
//  2. Logger, Metrics: wrap everything below so they see the final status
//  3. Recoverer: a panic becomes a 500 that is still logged
//  4. LoadUser: resolves the session cookie once per request
func (s *Server) setupRoutes() error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.Auth.SecretKey, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	cookies := auth.NewCookies(cfg.Auth.SecureCookies)
	flashes := flash.NewStore(cfg.Auth.SecureCookies)

	var github *auth.GitHubProvider
	if cfg.GitHub.Enabled() {
		github = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL)
	}

	// === Services ===
	authService := service.NewAuthService(s.db, tokens, passwords, service.AuthOptions{
		AdminEmail:        cfg.Auth.AdminEmail,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	}, s.logger)
	catalogService := service.NewCatalogService(s.db, s.logger)
	preferenceService := service.NewPreferenceService(s.db, s.logger)
	recommendationService := service.NewRecommendationService(s.db.Tracks(), s.logger)

	// === Handlers ===
	render, err := handler.NewRenderer(web.Templates(), flashes, github != nil, s.logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	pages := handler.NewPageHandler(recommendationService, render, s.logger)
	authHandler := handler.NewAuthHandler(handler.AuthHandlerConfig{
		Auth:        authService,
		GitHub:      github,
		Cookies:     cookies,
		SessionTTL:  tokens.TTL(),
		MinPassword: cfg.Auth.MinPasswordLength,
		Flashes:     flashes,
		Render:      render,
		Logger:      s.logger,
	})
	preferences := handler.NewPreferenceHandler(preferenceService, cookies, flashes, render, s.logger)
	admin := handler.NewAdminHandler(catalogService, flashes, render, s.logger)
	api := handler.NewAPIHandler(catalogService, s.logger)
	health := handler.NewHealthHandler(s.db, s.logger)

	// === Global Middleware ===
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Recoverer)
	r.Use(auth.LoadUser(tokens, authService, cookies, s.logger))

	r.NotFound(pages.HandleNotFound)

	// === Infrastructure ===
	r.Get("/healthz", health.HandleHealth)
	r.Handle("/metrics", s.protectMetrics(promhttp.Handler(), flashes))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	// === Public pages ===
	r.Get("/", pages.HandleHome)
	r.Get("/sobre", pages.HandleAbout)

	limit := s.loginRateLimit()
	r.Get("/login", authHandler.HandleLoginForm)
	r.With(limit).Post("/login", authHandler.HandleLogin)
	r.Get("/register", authHandler.HandleRegisterForm)
	r.With(limit).Post("/register", authHandler.HandleRegister)
	r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
	r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)

	// === Logged-in pages ===
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/logout", authHandler.HandleLogout)
		r.Get("/escolher-gostos", preferences.HandleChooseForm)
		r.Post("/escolher-gostos", preferences.HandleChoose)
		r.Get("/perfil", preferences.HandleProfile)
		r.Post("/perfil", preferences.HandleUpdateProfile)
		r.Post("/perfil/excluir", preferences.HandleDeleteAccount)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(flashes))
			admin.Routes(r)
		})
	})

	// === API ===
	r.Route("/api", func(r chi.Router) {
		if len(cfg.Server.CORSAllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
				AllowedHeaders:   []string{"Accept", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		r.Use(auth.RequireAuth)
		r.Get("/artists/search", api.HandleSearchArtists)
	})

	return nil
}

// protectMetrics lets admins through the usual session gate and, when
// server.metrics_token is set, any request carrying it as a bearer token.
func (s *Server) protectMetrics(h http.Handler, flashes *flash.Store) http.Handler {
	admin := auth.RequireAuth(auth.RequireAdmin(flashes)(h))
	token := s.config.Server.MetricsToken
	if token == "" {
		return admin
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok && subtle.ConstantTimeCompare([]byte(bearer), []byte(token)) == 1 {
			h.ServeHTTP(w, r)
			return
		}
		admin.ServeHTTP(w, r)
	})
}

// loginRateLimit limits credential POSTs per client IP. A limit of 0
// disables it.
func (s *Server) loginRateLimit() func(http.Handler) http.Handler {
	n := s.config.Server.LoginRateLimit
	if n <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(n, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Warn("login rate limit exceeded", slog.String("ip", r.RemoteAddr))
			http.Error(w, "Muitas tentativas. Aguarde um minuto e tente novamente.", http.StatusTooManyRequests)
		}),
	)
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully:
//  1. stop accepting new connections
//  2. wait up to server.shutdown_timeout for in-flight requests
//  3. close the database
func (s *Server) Start(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         s.config.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.config.Database.URL),
			slog.Bool("github", s.config.GitHub.Enabled()),
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
