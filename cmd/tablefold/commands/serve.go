package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablefold/tablefold/cmd/tablefold/ui"
	"github.com/tablefold/tablefold/internal/api"
	"github.com/tablefold/tablefold/internal/config"
	"github.com/tablefold/tablefold/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tablefold API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.Observability.LogLevel
	if verbose {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "tablefold",
	})

	ui.Info("Serving on %s:%d", cfg.Server.Host, cfg.Server.Port)
	return api.Run(logger, cfg)
}
