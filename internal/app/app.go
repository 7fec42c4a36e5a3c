// Package app assembles a ready-to-use assistant session from configuration.
// Every entry point (terminal chat, one-shot ask, HTTP API) goes through Open.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sqlassist/sqlassist/internal/assistant"
	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/conversation"
	"github.com/sqlassist/sqlassist/internal/credentials"
	"github.com/sqlassist/sqlassist/internal/database"
	"github.com/sqlassist/sqlassist/internal/gate"
	"github.com/sqlassist/sqlassist/internal/nl2sql"
	"github.com/sqlassist/sqlassist/internal/query/sqlexec"
	"github.com/sqlassist/sqlassist/internal/schema"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	DB      *sql.DB
	Session *assistant.Session
	// Credentials is nil when the keyring is disabled or could not be opened.
	Credentials *credentials.Store
}

// Open connects to the database, creates the sample table, seeds it when
// enabled and builds a session. The session has no translator until Connect
// succeeds.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	db, err := database.Open(ctx, database.FromConfig(cfg.Database))
	if err != nil {
		return nil, err
	}

	applied, err := database.Bootstrap(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("database bootstrapped", slog.Int("scripts", applied), slog.String("driver", cfg.Database.Driver))

	if cfg.Database.SeedSampleData {
		seeded, err := database.Seed(ctx, db, cfg.Database.Driver)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("sample data seeded", slog.Int("rows", seeded))
	}

	session, err := assistant.NewSession(assistant.Dependencies{
		Schema: schema.NewIntrospector(db, cfg.Database.Driver),
		Gate: gate.New(gate.Options{
			Triggers:     cfg.Gate.Triggers,
			ConfirmToken: cfg.Gate.ConfirmToken,
			ReadOnly:     cfg.Gate.ReadOnly,
		}),
		Engine: sqlexec.NewEngine(db, cfg.Database.DefaultTable),
		Log:    conversation.NewLog(),
		Logger: logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, DB: db, Session: session}
	if cfg.Keyring.Enabled {
		store, err := credentials.Open(cfg.Keyring)
		if err != nil {
			logger.Warn("keyring unavailable", slog.Any("error", err))
		} else {
			a.Credentials = store
		}
	}
	return a, nil
}

// Connect resolves the API key and installs a translator on the session.
// prompt may be nil for non-interactive surfaces. A missing key returns
// credentials.ErrNotFound and leaves the session usable for schema and
// history requests.
func (a *App) Connect(prompt credentials.PromptFunc) (credentials.Source, error) {
	resolver := credentials.Resolver{
		EnvKey:   a.Config.LLM.APIKey,
		Store:    a.Credentials,
		Prompt:   prompt,
		Remember: true,
	}
	key, source, err := resolver.Resolve()
	if err != nil {
		if !credentials.IsRememberFailure(err) {
			return credentials.SourceNone, err
		}
		a.Logger.Warn("api key not saved to keyring", slog.Any("error", err))
	}

	translator, err := NewTranslator(a.Config.LLM, key)
	if err != nil {
		return credentials.SourceNone, err
	}
	a.Session.SetTranslator(translator)
	a.Logger.Debug("language model connected", slog.String("source", string(source)), slog.String("model", a.Config.LLM.Model))
	return source, nil
}

func NewTranslator(cfg config.LLMConfig, apiKey string) (nl2sql.Translator, error) {
	client, err := nl2sql.NewOpenAIClient(nl2sql.OpenAIConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      apiKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return nl2sql.NewLLMTranslator(client, cfg.Stream), nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// IsMissingCredential reports whether err means no API key is available yet.
func IsMissingCredential(err error) bool {
	return errors.Is(err, credentials.ErrNotFound) || errors.Is(err, nl2sql.ErrMissingCredential)
}
