// Package commands provides the CLI commands for the tool runtime.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/toolrun/internal/config"
	"github.com/opencode-ai/toolrun/internal/executor"
	"github.com/opencode-ai/toolrun/internal/logging"
	"github.com/opencode-ai/toolrun/pkg/types"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	workDir   string
	envFile   string
	logFile   string
)

var rootCmd = &cobra.Command{
	Use:   "opencode",
	Short: "Run coding-assistant file tools inside sandboxed sessions",
	Long: `opencode runs file tools (read, write, edit, multiedit, list, glob)
inside sessions bound to a working directory. Paths outside the session
directory and protected paths are refused.

Run 'opencode invoke' for a single tool call, 'opencode chain' for a
sequence from a file, or 'opencode serve' to start the HTTP server.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnv,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand, show help
		cmd.Help()
	},
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVar(&workDir, "directory", "", "Working directory (defaults to the current directory)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file or directory")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("opencode %s (%s)\n", Version, BuildTime))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(debugCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadEnv loads the environment file. A missing file is not an error.
func loadEnv(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

// loadConfig resolves the working directory, loads the layered
// configuration and initializes logging from it.
func loadConfig() (string, *types.Config, error) {
	dir, err := GetWorkDir(workDir)
	if err != nil {
		return "", nil, err
	}

	appConfig, err := config.Load(dir)
	if err != nil {
		return "", nil, err
	}
	if appConfig.Directory != "" && workDir == "" {
		dir = appConfig.Directory
	}

	initLogging(appConfig)
	return dir, appConfig, nil
}

// initLogging configures zerolog. The flag wins over the configured level.
// Without --print-logs only warnings and errors reach stderr.
func initLogging(appConfig *types.Config) {
	level := appConfig.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	cfg := logging.DefaultConfig()
	cfg.Pretty = true
	cfg.Level = logging.ParseLevel(level)
	cfg.File = logFile
	if !printLogs && cfg.Level < logging.WarnLevel {
		cfg.Level = logging.WarnLevel
	}
	logging.Init(cfg)
}

// newRuntime loads configuration and builds a runtime. Ephemeral runtimes
// keep sessions in memory only.
func newRuntime(ctx context.Context, ephemeral bool) (string, *types.Config, *executor.Runtime, error) {
	dir, appConfig, err := loadConfig()
	if err != nil {
		return "", nil, nil, err
	}
	if ephemeral {
		appConfig.Storage = &types.StorageConfig{Disabled: true}
	} else if config.StoragePath(appConfig) != "" {
		if err := config.GetPaths().EnsurePaths(); err != nil {
			return "", nil, nil, err
		}
	}

	rt, err := executor.NewRuntime(ctx, appConfig, executor.RuntimeOptions{})
	if err != nil {
		return "", nil, nil, err
	}
	return dir, appConfig, rt, nil
}
