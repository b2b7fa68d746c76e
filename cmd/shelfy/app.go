package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"shelfy/config"
	"shelfy/internal/logging"
	"shelfy/internal/storage"
	"shelfy/internal/storage/sqlite"
	"shelfy/internal/vitesy"
)

// app holds the dependencies shared by the commands
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  storage.Storage
	auth   *vitesy.Authenticator
}

// newApp loads the configuration and opens the token store. Command output
// goes to stdout, so logs go to logOutput.
func newApp(logOutput io.Writer) (*app, error) {
	cfg, err := config.LoadAuto(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	format := cfg.Logging.Format
	if logFormat != "" {
		format = logFormat
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: format,
		Level:  logging.ParseLevel(level),
		Output: logOutput,
	})

	return newAppFromConfig(cfg, logger)
}

func newAppFromConfig(cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	auth := vitesy.NewAuthenticator(cfg.Vitesy.Authenticator(),
		vitesy.WithStorage(store),
		vitesy.WithLogger(logger),
	)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		auth:   auth,
	}, nil
}

// cliApp is newApp for the one-shot commands: only warnings reach stderr
// unless --log-level says otherwise.
func cliApp() (*app, error) {
	if logLevel == "" {
		logLevel = "warn"
	}
	if logFormat == "" {
		logFormat = "text"
	}
	return newApp(os.Stderr)
}

// ensureSession restores the stored token set and falls back to a fresh
// login when there is none or it can no longer be refreshed.
func (a *app) ensureSession(ctx context.Context) error {
	stored, err := a.store.GetTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored tokens: %w", err)
	}

	if stored != nil && stored.RefreshToken != "" {
		a.auth.Restore(*stored)
		_, err := a.auth.AccessToken(ctx)
		if err == nil {
			a.logger.Debug("Restored stored session")
			return nil
		}
		a.logger.Warn("Stored session rejected, logging in again", "error", err)
	}

	return a.auth.Login(ctx)
}

// api returns the vendor client wrapped with call logging. The session must
// be established first so the stored api key is picked up.
func (a *app) api() vitesy.API {
	client := vitesy.NewClient(a.auth, nil, a.logger)
	return logging.NewClientLogger(client, a.logger)
}

func (a *app) Close() error {
	return a.store.Close()
}
