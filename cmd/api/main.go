package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kimgyuhyun/ott-project-sub001/internal/app"
	"github.com/kimgyuhyun/ott-project-sub001/internal/config"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/logger"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/validator"
)

func main() {
	logger.Init()
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables", nil)
	}

	cfg := config.New()
	validator.Init()

	application, err := app.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", map[string]interface{}{
			"error": err.Error(),
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- application.Run()
	}()

	select {
	case err := <-serverErr:
		logger.Error(err, "Server error", nil)
	case <-ctx.Done():
		logger.Info("Shutdown signal received", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Failed to shut down gracefully", nil)
		os.Exit(1)
	}

	logger.Info("Server stopped", nil)
}
