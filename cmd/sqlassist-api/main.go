package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlassist/sqlassist/internal/api"
	"github.com/sqlassist/sqlassist/internal/api/uistatic"
	"github.com/sqlassist/sqlassist/internal/app"
	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlassist-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	assistantApp, err := app.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = assistantApp.Close() }()

	// The API never prompts; without a key /v1/chat answers CREDENTIAL_REQUIRED.
	if _, err := assistantApp.Connect(nil); err != nil {
		if !app.IsMissingCredential(err) {
			logger.Error("failed to initialize language model client", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Warn("no language model api key configured")
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:  logger,
		Session: assistantApp.Session,
		UI:      uistatic.Handler(),
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabase(assistantApp.DB),
			api.CheckCredential(assistantApp.Session),
		),
		DependencyTimeout: time.Second,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.String("session_id", assistantApp.Session.ID()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
