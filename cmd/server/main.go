package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approvals/internal/config"
	"github.com/garyjia/expense-approvals/internal/container"
	apihttp "github.com/garyjia/expense-approvals/internal/interfaces/http"
	"github.com/garyjia/expense-approvals/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(cfg.ToLoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting expense approval service",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Driver),
		zap.Bool("auth_enabled", cfg.Auth.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Error("Failed to start container", zap.Error(err))
		_ = c.Close()
		os.Exit(1)
	}

	svc := c.Services()
	server := apihttp.NewServer(cfg.ToServerConfig(), apihttp.Services{
		Expenses:  svc.Expenses,
		Approvals: svc.Approvals,
		Rules:     svc.Rules,
		Users:     svc.Users,
		Auth:      svc.Auth,
		Receipts:  svc.Receipts,
		Reports:   svc.Reports,
		Demo:      svc.Demo,
		Countries: c.Countries(),
		Health:    c.HealthCheck,
	}, container.NewLoggerAdapter(logger.Named("http")))

	// Blocks until a signal arrives or the listener fails
	serveErr := server.Start(ctx)
	if serveErr != nil {
		logger.Error("HTTP server failed", zap.Error(serveErr))
	}

	logger.Info("Shutting down")
	if err := c.Close(); err != nil {
		logger.Error("Container shutdown failed", zap.Error(err))
	}
	if serveErr != nil {
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}
