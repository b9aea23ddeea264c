package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahlab/ahlab/internal/server"
)

var servePort int

// serveCmd runs the HTTP control surface
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API for starting, stopping and watching optimizer runs",
	Long: `Serve the optimizer control API.

Examples:
  ahlab serve
  ahlab serve --port 9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default from AHLAB_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, container, log, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	port := cfg.Port
	if servePort > 0 {
		port = servePort
	}

	srv := server.New(server.Config{
		Log:       log,
		Port:      port,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	log.Info().Msg("Shutting down")

	// let the optimizer finish its current genome and record the run
	if container.Engine.Stop() {
		container.Engine.Wait()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}
