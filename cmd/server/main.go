package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/mikeboe/research-agent/pkg/config"
	"github.com/mikeboe/research-agent/pkg/database"
	"github.com/mikeboe/research-agent/pkg/metrics"
	"github.com/mikeboe/research-agent/pkg/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	cfg := config.Load()

	// Missing keys are reported per request; warn early for operators
	if err := cfg.Validate(); err != nil {
		slog.Warn("Configuration incomplete", "error", err)
	}

	svc := server.NewService(cfg, metrics.New())

	// Database Connection (optional audit trail)
	if cfg.DatabaseURL != "" {
		db, err := database.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		svc.Runs = db
	}

	handler := server.NewHandler(svc)

	// Web Server Setup
	r := gin.Default()
	r.Use(server.CORS())
	handler.RegisterRoutes(r)

	slog.Info("Server starting", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
