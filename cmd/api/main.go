package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frans-sjostrom/ads-insights/internal/auth"
	"github.com/frans-sjostrom/ads-insights/internal/config"
	"github.com/frans-sjostrom/ads-insights/internal/database"
	"github.com/frans-sjostrom/ads-insights/internal/googleads"
	"github.com/frans-sjostrom/ads-insights/internal/handlers"
	"github.com/frans-sjostrom/ads-insights/internal/middleware"
	"github.com/frans-sjostrom/ads-insights/internal/ratelimit"
	"github.com/frans-sjostrom/ads-insights/internal/repository"
	"github.com/frans-sjostrom/ads-insights/pkg/tokencrypt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// Connect to database
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(cfg.MigrationsPath, cfg.DatabaseURL, logger); err != nil {
		return err
	}

	cipher, err := tokencrypt.New(cfg.TokenEncryptionKey)
	if err != nil {
		return fmt.Errorf("token cipher: %w", err)
	}
	accounts := repository.NewAccountRepository(db.Pool, cipher)

	// One limiter paces every outbound Ads call in this process.
	limiter := ratelimit.New(cfg.RateLimitDelay)
	defer limiter.Close()

	tokens := auth.NewTokenManager(cfg.Credentials, cfg.GoogleRedirectURL, auth.Options{
		Timeout: cfg.RequestTimeout,
	}, logger.Named("oauth"))

	client := googleads.NewClient(cfg.Credentials, limiter, googleads.ClientOptions{
		APIVersion: cfg.APIVersion,
		Timeout:    cfg.RequestTimeout,
	}, logger.Named("googleads"))

	service := googleads.NewService(accounts, tokens, client, googleads.ServiceOptions{
		RedirectURL: cfg.GoogleRedirectURL,
		RefreshSkew: cfg.TokenRefreshSkew,
	}, logger.Named("googleads"))

	// Initialize handlers
	h := handlers.New(db, service, tokens, cfg, logger.Named("http"))

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger.Named("http")))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/google-ads", func(r chi.Router) {
		// Google redirects the browser here, so there is no session header.
		r.Get("/callback", h.Callback)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.JWTPublicKey))

			r.Get("/connect", h.Connect)
			r.Get("/accounts", h.ListAccounts)
			r.Post("/disconnect", h.Disconnect)

			r.Get("/metrics", h.Metrics)
			r.Get("/campaigns", h.Campaigns)
			r.Get("/ad-groups", h.AdGroups)
			r.Get("/keywords", h.Keywords)
			r.Get("/daily", h.Daily)
			r.Get("/geo", h.Geo)
			r.Get("/demographics", h.Demographics)
			r.Get("/recommendations", h.Recommendations)
			r.Post("/recommendations/apply", h.ApplyRecommendation)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
