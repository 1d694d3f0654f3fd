// Command seed-demo creates the demo tenant and prints the result with its credentials.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approvals/internal/config"
	"github.com/garyjia/expense-approvals/internal/container"
	"github.com/garyjia/expense-approvals/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Keep stdout for the JSON result
	logCfg := cfg.ToLoggerConfig()
	if logCfg.OutputPath == "" || logCfg.OutputPath == "stdout" {
		logCfg.OutputPath = "stderr"
	}
	logger, err := utils.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	containerCfg := cfg.ToContainerConfig()
	// One-shot run, no background refresh
	containerCfg.Countries.RefreshInterval = 0

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(context.Background()); err != nil {
		logger.Error("Failed to start container", zap.Error(err))
		_ = c.Close()
		os.Exit(1)
	}
	defer c.Close()

	result, err := c.Services().Demo.InitDemo(context.Background())
	if err != nil {
		logger.Error("Failed to seed demo data", zap.Error(err))
		_ = c.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("Failed to write result", zap.Error(err))
	}
}
