package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/wrongjunior/adminnotify/internal/config"
	"github.com/wrongjunior/adminnotify/internal/server"
	"log/slog"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	wsPath := flag.String("path", "/ws/admin/notify", "WebSocket path served to consoles")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		config.Exitf("load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	// Имитация сервера уведомлений платформы.
	srv := server.NewServer(logger, cfg.MockInterval())
	srv.Run()

	httpServer := &http.Server{
		Addr:              cfg.MockAddr,
		Handler:           srv.SetupRouter(*wsPath),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting mock notify server", "addr", cfg.MockAddr, "path", *wsPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Обработка graceful shutdown.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down mock server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("Mock server stopped")
}
