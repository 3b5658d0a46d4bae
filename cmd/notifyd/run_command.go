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

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/wrongjunior/adminnotify/internal/service"
	"github.com/wrongjunior/adminnotify/internal/speech"
	transportClient "github.com/wrongjunior/adminnotify/internal/transport/client"
	transportServer "github.com/wrongjunior/adminnotify/internal/transport/server"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the notify server and serve the notification center",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), ctx)
		},
	}
}

func runDaemon(parent context.Context, c *commandContext) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := c.logger

	// Один демон на одно хранилище: иначе журналы перезаписывают друг друга.
	lock := flock.New(cfg.Lock())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", cfg.Lock(), err)
	}
	if !locked {
		return fmt.Errorf("another notifyd instance holds %s", cfg.Lock())
	}
	defer lock.Unlock()

	repo, closeDB, err := c.openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Синтез речи необязателен: без утилиты диктор молчит.
	var synth speech.Synthesizer
	if cfg.SpeechEnabled {
		cs, err := speech.NewCommandSynthesizer(cfg.SpeechBinary, logger)
		if err != nil {
			logger.Warn("Speech synthesis unavailable", "error", err)
		} else {
			cs.Start(ctx)
			synth = cs
		}
	}
	announcer := speech.NewAnnouncer(synth, logger)

	eventService := service.NewEventService(logger)
	store := service.NewNotificationStore(
		transportClient.NewWebSocketDialer(logger),
		repo,
		announcer,
		eventService,
		logger,
		service.Options{
			URL:               cfg.ClientServerURL,
			ReconnectDelay:    cfg.ReconnectDelay(),
			MaxReconnectDelay: cfg.MaxReconnectDelay(),
		},
	)
	store.Start(ctx)
	defer store.Stop()

	handler := transportServer.NewHandler(store, eventService, repo, logger)
	httpServer := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           transportServer.SetupRouter(handler, cfg.WSPath),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.ServerAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("Shutting down notifyd...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("notifyd stopped")
	return nil
}
