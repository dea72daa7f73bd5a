// Package main provides the entry point for the tool runtime server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencode-ai/toolrun/internal/config"
	"github.com/opencode-ai/toolrun/internal/executor"
	"github.com/opencode-ai/toolrun/internal/logging"
	"github.com/opencode-ai/toolrun/internal/server"
)

var (
	port      = flag.Int("port", 0, "Server port (default from config, else 8080)")
	directory = flag.String("directory", "", "Working directory")
	logLevel  = flag.String("log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	logToFile = flag.Bool("log-file", false, "Also write JSON logs under the state directory")
	version   = flag.Bool("version", false, "Print version and exit")
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("opencode-server %s (%s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Determine working directory
	workDir := *directory
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get working directory: %v\n", err)
			os.Exit(1)
		}
	}

	// Load configuration
	appConfig, err := config.Load(workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	level := appConfig.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logCfg.Level = logging.ParseLevel(level)
	if *logToFile {
		paths := config.GetPaths()
		if err := paths.EnsurePaths(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create data directories: %v\n", err)
			os.Exit(1)
		}
		logCfg.File = paths.LogPath()
	}
	logging.Init(logCfg)
	defer logging.Close()

	// Initialize paths
	if config.StoragePath(appConfig) != "" {
		if err := config.GetPaths().EnsurePaths(); err != nil {
			logging.Fatal().Err(err).Msg("failed to create data directories")
		}
	}

	rt, err := executor.NewRuntime(context.Background(), appConfig, executor.RuntimeOptions{})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build runtime")
	}

	// Configure server
	serverConfig := server.ConfigFrom(appConfig)
	if *port != 0 {
		serverConfig.Port = *port
	}
	srv := server.New(serverConfig, rt)

	logging.Info().
		Str("version", Version).
		Str("directory", workDir).
		Msg("starting server")

	// Start server in goroutine
	go func() {
		logging.Info().Str("addr", "http://"+srv.Addr()).Msg("server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
}
