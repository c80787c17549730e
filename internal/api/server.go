package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tablefold/tablefold/internal/config"
	"github.com/tablefold/tablefold/internal/observability"
)

// Run builds the application, serves HTTP on the configured address and
// blocks until a shutdown signal or a server error. On shutdown it drains
// the HTTP server first, then waits for in-flight jobs to settle.
func Run(logger *observability.Logger, cfg *config.Config) error {
	app, err := NewApp(context.Background(), logger, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer app.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
			srv.Close()
		}
		if err := app.Queue().Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("In-flight jobs did not settle before shutdown")
		}
	}
	return nil
}
