// Package main provides the tablefold API server entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/tablefold/tablefold/internal/api"
	"github.com/tablefold/tablefold/internal/config"
	"github.com/tablefold/tablefold/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "tablefold",
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("cache", cfg.Cache.Driver).
		Int("max_concurrent_jobs", cfg.Queue.MaxConcurrentJobs).
		Msg("Starting tablefold API")

	if err := api.Run(logger, cfg); err != nil {
		logger.Fatal().Err(err).Msg("Server exited")
	}
}
