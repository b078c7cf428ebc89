package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crucial707/audit-search/internal/config"
	"github.com/crucial707/audit-search/internal/db"
	"github.com/crucial707/audit-search/internal/handlers"
	"github.com/crucial707/audit-search/internal/middleware"
	"github.com/crucial707/audit-search/internal/registry"
	"github.com/crucial707/audit-search/internal/repo"
	"github.com/crucial707/audit-search/internal/scheduler"
	"github.com/crucial707/audit-search/internal/search"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogFormat, cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func setupLogging(format, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Connect to database FIRST
	database, err := db.Connect(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("connected to database")

	if err := db.Run(cfg.DatabaseURL()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	types, err := registry.FromConfig(repo.NewContentTypeRepo(database), cfg)
	if err != nil {
		return err
	}
	if err := types.Reload(ctx); err != nil {
		return err
	}
	log.Info().Strs("types", types.Names()).Msg("entity types loaded")

	go func() {
		if err := scheduler.Run(ctx, cfg.RegistryRefreshCron, "registry", types); err != nil {
			log.Error().Err(err).Msg("registry refresh disabled")
		}
	}()

	dispatcher, err := search.FromConfig(cfg, types)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(database, cfg, types, dispatcher),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Bool("tls", cfg.TLSCertFile != "").Msg("starting server")
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

// newRouter builds the HTTP API. types may be nil, in which case logins are
// not written to the audit log.
func newRouter(database *sql.DB, cfg config.Config, types handlers.PrincipalTypes, searcher handlers.Searcher) chi.Router {
	userRepo := repo.NewUserRepo(database, cfg.UserLoginField)
	auditRepo := repo.NewAuditRepo(database, cfg.UserLoginField)

	ttl := time.Duration(cfg.JWTExpireHours) * time.Hour
	authHandler := &handlers.AuthHandler{UserRepo: userRepo, Secret: []byte(cfg.JWTSecret), TokenTTL: ttl}
	if types != nil {
		authHandler.AuditRepo = auditRepo
		authHandler.Types = types
	}
	auditHandler := &handlers.AuditHandler{Repo: auditRepo, Searcher: searcher}
	userHandler := &handlers.UserHandler{Repo: userRepo}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLog)
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != ""))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := database.PingContext(ctx); err != nil {
			handlers.JSONError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ready\n"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(middleware.AuthRateLimiter().Middleware, middleware.MaxBytes(middleware.DefaultMaxBodyBytes)).
		Post("/auth/login", authHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(cfg.JWTSecret)))
		r.Get("/me", userHandler.Me)
		r.With(middleware.SearchRateLimiter().Middleware).Get("/audit", auditHandler.ListAudit)
		r.Get("/audit/{id}", auditHandler.GetAudit)
	})

	return r
}
