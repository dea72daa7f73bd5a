package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/toolrun/internal/config"
	"github.com/opencode-ai/toolrun/internal/permission"
)

var debugFormat string

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug utilities",
	Long:  `Debug utilities for troubleshooting configuration and setup.`,
}

var debugConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the merged configuration",
	RunE:  runDebugConfig,
}

var debugPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show system paths",
	RunE:  runDebugPaths,
}

var debugDenylistCmd = &cobra.Command{
	Use:   "denylist",
	Short: "Show the active permission denylist",
	RunE:  runDebugDenylist,
}

func init() {
	debugConfigCmd.Flags().StringVar(&debugFormat, "format", "json", "Output format (json|yaml)")

	debugCmd.AddCommand(debugConfigCmd)
	debugCmd.AddCommand(debugPathsCmd)
	debugCmd.AddCommand(debugDenylistCmd)
}

func runDebugConfig(cmd *cobra.Command, args []string) error {
	_, appConfig, err := loadConfig()
	if err != nil {
		return err
	}

	var data []byte
	if debugFormat == "yaml" {
		data, err = yaml.Marshal(appConfig)
	} else {
		data, err = json.MarshalIndent(appConfig, "", "  ")
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(data), "\n"))
	return nil
}

func runDebugPaths(cmd *cobra.Command, args []string) error {
	paths := config.GetPaths()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "System Paths:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Config:   %s\n", paths.Config)
	fmt.Fprintf(out, "  Data:     %s\n", paths.Data)
	fmt.Fprintf(out, "  Cache:    %s\n", paths.Cache)
	fmt.Fprintf(out, "  State:    %s\n", paths.State)
	fmt.Fprintf(out, "  Storage:  %s\n", paths.StoragePath())
	fmt.Fprintf(out, "  Logs:     %s\n", paths.LogPath())

	dir, err := GetWorkDir(workDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Global config:  %s\n", config.GlobalConfigPath())
	fmt.Fprintf(out, "  Project config: %s\n", config.ProjectConfigPath(dir))
	return nil
}

func runDebugDenylist(cmd *cobra.Command, args []string) error {
	_, appConfig, err := loadConfig()
	if err != nil {
		return err
	}
	validator, err := permission.FromConfig(appConfig.Permission)
	if err != nil {
		return err
	}
	for _, pattern := range validator.Denylist() {
		fmt.Fprintln(cmd.OutOrStdout(), pattern)
	}
	return nil
}
