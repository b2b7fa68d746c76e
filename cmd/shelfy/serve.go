package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shelfy/internal/api"
	"shelfy/internal/entities"
	"shelfy/internal/notify"
	"shelfy/internal/poller"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll the devices and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := newApp(os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger

	logger.Info("Starting shelfy",
		"version", version,
		"db_path", cfg.Database.Path,
		"poll_interval", cfg.Vitesy.PollInterval(),
	)

	if err := a.ensureSession(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	vendorAPI := a.api()
	registry := entities.NewRegistry()
	devicePoller := poller.NewPoller(vendorAPI, cfg.Vitesy.PollInterval(), logger)

	devicePoller.OnUpdate(func(snapshot poller.Snapshot) {
		if !snapshot.Available {
			return
		}
		count := registry.Sync(snapshot.Devices)
		logger.Debug("Entities synced",
			"cycle_id", snapshot.CycleID,
			"entities", count)
	})

	if cfg.Telegram.Enabled() {
		sender, err := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram: %w", err)
		}
		notifier := notify.NewNotifier(sender, a.store, logger)
		devicePoller.OnUpdate(notifier.HandleSnapshot)
		logger.Info("Maintenance alerts enabled", "chat_id", cfg.Telegram.ChatID)
	}

	// A failed first poll is retried on the next tick
	if err := devicePoller.Refresh(ctx); err != nil {
		logger.Warn("Initial poll failed", "error", err)
	}
	go devicePoller.Start()

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		Registry:  registry,
		Snapshots: devicePoller,
		API:       vendorAPI,
		Tokens:    a.auth,
		APIKey:    cfg.Security.APIKey,
		Logger:    logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		devicePoller.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Starting graceful shutdown", "signal", sig.String())

		devicePoller.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("Graceful shutdown complete")
	}

	return nil
}
