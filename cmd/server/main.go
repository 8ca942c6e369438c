package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dialstack/callbridge/internal/config"
	"github.com/dialstack/callbridge/internal/filemaker"
	"github.com/dialstack/callbridge/internal/metrics"
	"github.com/dialstack/callbridge/internal/webhook"
	"github.com/dialstack/callbridge/pkg/middleware"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Str("fm_host", cfg.FMHost).
		Str("fm_database", cfg.FMDatabase).
		Str("fm_layout", cfg.FMLayout).
		Dur("session_refresh", cfg.SessionRefresh).
		Msg("starting callbridge server")

	// Create context for background services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create FileMaker client and session
	fmClient := filemaker.NewClient(filemaker.ClientConfig{
		Host:     cfg.FMHost,
		Database: cfg.FMDatabase,
		Layout:   cfg.FMLayout,
		Username: cfg.FMUsername,
		Password: cfg.FMPassword,
		Timeout:  cfg.RequestTimeout,
	}, log.Logger)
	session := filemaker.NewSession(fmClient, cfg.SessionRefresh, log.Logger)

	// Warm the session up front so the first webhook doesn't pay for a login.
	// A failure is logged, not fatal: FileMaker may simply not be up yet.
	if err := session.Login(ctx); err != nil {
		log.Warn().Err(err).Msg("initial filemaker login failed, will retry on demand")
	}
	go session.KeepAlive(ctx)

	// Create upsert engine and webhook handler
	recorder := filemaker.NewRecorder(fmClient, session, log.Logger)
	handler := webhook.NewHandler(cfg.WebhookSecret, recorder, session, cfg.MissedCallEndTime, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register routes
	r.Get("/", handler.HandleLiveness)
	r.Get("/health", handler.HandleHealth)
	r.Post("/webhook", handler.HandleWebhook)
	r.Get("/internal/metrics", metrics.Get().Handler())

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the keepalive loop
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Best-effort logout so the Data API session isn't left open
	session.Logout(shutdownCtx)

	log.Info().Msg("server stopped")
}
