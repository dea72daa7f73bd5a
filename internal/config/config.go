package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/toolrun/pkg/types"
)

// Environment variables read by Load.
const (
	EnvConfig        = "TOOLRUN_CONFIG"
	EnvConfigContent = "TOOLRUN_CONFIG_CONTENT"
	EnvConfigDir     = "TOOLRUN_CONFIG_DIR"
	EnvLogLevel      = "TOOLRUN_LOG_LEVEL"
	EnvDenylist      = "TOOLRUN_DENYLIST"
	EnvPort          = "TOOLRUN_PORT"
	EnvDirectory     = "TOOLRUN_DIRECTORY"
)

// configNames are the file names probed in every config directory, in load
// order.
var configNames = []string{"toolrun.json", "toolrun.jsonc", "toolrun.yaml", "toolrun.yml"}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/toolrun/)
// 2. Project config (<directory>/ and <directory>/.toolrun/)
// 3. TOOLRUN_CONFIG file
// 4. TOOLRUN_CONFIG_CONTENT inline JSON
// 5. Environment variables
//
// Missing files are skipped; a file that exists but cannot be parsed is an
// error.
func Load(directory string) (*types.Config, error) {
	config := &types.Config{}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) error {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil
		}
		if loaded[absPath] {
			return nil
		}
		if err := loadConfigFile(path, config, baseDir); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		loaded[absPath] = true
		return nil
	}

	var dirs []string

	// 1. Global config
	dirs = append(dirs, GetConfigDir())

	// 2. Project config
	if directory != "" {
		dirs = append(dirs, directory, filepath.Join(directory, ".toolrun"))
	}

	for _, dir := range dirs {
		for _, name := range configNames {
			if err := loadOnce(filepath.Join(dir, name), dir); err != nil {
				return nil, err
			}
		}
	}

	// 3. TOOLRUN_CONFIG file override
	if configPath := os.Getenv(EnvConfig); configPath != "" {
		if err := loadOnce(configPath, filepath.Dir(configPath)); err != nil {
			return nil, err
		}
	}

	// 4. TOOLRUN_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv(EnvConfigContent); configContent != "" {
		var inlineConfig types.Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(configContent)), &inlineConfig); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvConfigContent, err)
		}
		mergeConfig(config, &inlineConfig)
	}

	// 5. Environment variables (highest priority)
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = interpolate(data, baseDir)

	var fileConfig types.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		// Strip JSONC comments using tidwall/jsonc
		if err := json.Unmarshal(jsonc.ToJSON(data), &fileConfig); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for a double-quoted JSON or YAML string
		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Directory != "" {
		target.Directory = source.Directory
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}

	// Merge tools
	if source.Tools != nil {
		if target.Tools == nil {
			target.Tools = make(map[string]bool)
		}
		for k, v := range source.Tools {
			target.Tools[k] = v
		}
	}

	// Denylists accumulate across layers unless a layer replaces defaults.
	if source.Permission != nil {
		if target.Permission == nil || source.Permission.ReplaceDefaults {
			p := *source.Permission
			p.Denylist = append([]string(nil), source.Permission.Denylist...)
			target.Permission = &p
		} else {
			target.Permission.Denylist = append(target.Permission.Denylist, source.Permission.Denylist...)
		}
	}

	if source.Server != nil {
		if target.Server == nil {
			target.Server = &types.ServerConfig{}
		}
		if source.Server.Port != 0 {
			target.Server.Port = source.Server.Port
		}
		if source.Server.Hostname != "" {
			target.Server.Hostname = source.Server.Hostname
		}
		if source.Server.CORS != nil {
			target.Server.CORS = source.Server.CORS
		}
	}

	if source.Storage != nil {
		target.Storage = source.Storage
	}

	if source.Execution != nil {
		target.Execution = source.Execution
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) error {
	if level := os.Getenv(EnvLogLevel); level != "" {
		config.LogLevel = level
	}

	if dir := os.Getenv(EnvDirectory); dir != "" {
		config.Directory = dir
	}

	// Comma-separated patterns, appended to the configured denylist
	if deny := os.Getenv(EnvDenylist); deny != "" {
		if config.Permission == nil {
			config.Permission = &types.PermissionConfig{}
		}
		for _, pattern := range strings.Split(deny, ",") {
			if pattern = strings.TrimSpace(pattern); pattern != "" {
				config.Permission.Denylist = append(config.Permission.Denylist, pattern)
			}
		}
	}

	if portStr := os.Getenv(EnvPort); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, portStr, err)
		}
		if config.Server == nil {
			config.Server = &types.ServerConfig{}
		}
		config.Server.Port = port
	}

	return nil
}

// Validate checks values that cannot be enforced by the decoder.
func Validate(config *types.Config) error {
	if config.Server != nil && (config.Server.Port < 0 || config.Server.Port > 65535) {
		return fmt.Errorf("invalid server port %d", config.Server.Port)
	}
	if _, err := DefaultTimeout(config); err != nil {
		return err
	}
	return nil
}

// DefaultTimeout parses execution.defaultTimeout. It returns zero when
// unset.
func DefaultTimeout(config *types.Config) (time.Duration, error) {
	if config == nil || config.Execution == nil || config.Execution.DefaultTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(config.Execution.DefaultTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid execution.defaultTimeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid execution.defaultTimeout: negative duration")
	}
	return d, nil
}

// StoragePath returns the session storage root, or "" when persistence is
// disabled.
func StoragePath(config *types.Config) string {
	if config != nil && config.Storage != nil {
		if config.Storage.Disabled {
			return ""
		}
		if config.Storage.Path != "" {
			return config.Storage.Path
		}
	}
	return GetPaths().StoragePath()
}

// Save saves the configuration to a file. The format follows the file
// extension.
func Save(config *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigDir returns the global config directory.
// Prefers TOOLRUN_CONFIG_DIR, then ~/.config/toolrun.
func GetConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	return GetPaths().Config
}
