package types

// Config represents the toolrun configuration.
// Loaded from JSON, JSONC or YAML files; see internal/config.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Default working directory for new sessions
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty"`

	// Log level: DEBUG|INFO|WARN|ERROR
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// Global tools enable/disable
	Tools map[string]bool `json:"tools,omitempty" yaml:"tools,omitempty"`

	// Permission settings
	Permission *PermissionConfig `json:"permission,omitempty" yaml:"permission,omitempty"`

	// HTTP server
	Server *ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Session persistence
	Storage *StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`

	// Invocation defaults
	Execution *ExecutionConfig `json:"execution,omitempty" yaml:"execution,omitempty"`
}

// PermissionConfig holds the protected-path settings.
type PermissionConfig struct {
	// Denylist holds doublestar patterns, relative to the session root,
	// that mutating tools may never touch.
	Denylist []string `json:"denylist,omitempty" yaml:"denylist,omitempty"`

	// ReplaceDefaults drops the built-in denylist instead of extending it.
	ReplaceDefaults bool `json:"replaceDefaults,omitempty" yaml:"replaceDefaults,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	CORS     *bool  `json:"cors,omitempty" yaml:"cors,omitempty"`
}

// StorageConfig controls session persistence.
type StorageConfig struct {
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ExecutionConfig holds invocation defaults.
type ExecutionConfig struct {
	// DefaultTimeout is a Go duration ("30s", "2m") applied to invocations
	// that carry no deadline. Empty means no deadline.
	DefaultTimeout string `json:"defaultTimeout,omitempty" yaml:"defaultTimeout,omitempty"`
}

// ToolEnabled reports whether a tool is enabled. Tools are enabled unless
// explicitly set to false.
func (c *Config) ToolEnabled(name string) bool {
	if c == nil || c.Tools == nil {
		return true
	}
	enabled, ok := c.Tools[name]
	return !ok || enabled
}
