package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/toolrun/internal/logging"
	"github.com/opencode-ai/toolrun/internal/server"
)

var (
	servePort     int
	serveHostname string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the tool runtime as a server that exposes sessions and tool
invocation over HTTP, with an SSE event stream and Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config, else 8080)")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "127.0.0.1", "Hostname to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	workDir, appConfig, rt, err := newRuntime(ctx, false)
	if err != nil {
		return err
	}

	// Configure server
	serverConfig := server.ConfigFrom(appConfig)
	if servePort != 0 {
		serverConfig.Port = servePort
	}
	if cmd.Flags().Changed("hostname") || serverConfig.Hostname == "" {
		serverConfig.Hostname = serveHostname
	}

	srv := server.New(serverConfig, rt)

	logging.Info().
		Str("version", Version).
		Str("directory", workDir).
		Int("tools", len(rt.Tools())).
		Msg("starting server")

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", "http://"+srv.Addr()).Msg("server listening")
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

	logging.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
	return nil
}
