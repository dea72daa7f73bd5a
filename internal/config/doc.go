// Package config provides configuration loading, merging, and path management.
//
// # Configuration Loading
//
// Load merges configuration from several sources, later sources overriding
// earlier ones:
//
//  1. Global config (~/.config/toolrun/, or TOOLRUN_CONFIG_DIR)
//  2. Project config (<dir>/toolrun.* and <dir>/.toolrun/toolrun.*)
//  3. TOOLRUN_CONFIG file
//  4. TOOLRUN_CONFIG_CONTENT inline JSON
//  5. Environment variables (TOOLRUN_LOG_LEVEL, TOOLRUN_DIRECTORY,
//     TOOLRUN_DENYLIST, TOOLRUN_PORT)
//
// # Supported Formats
//
//   - toolrun.json - Standard JSON configuration
//   - toolrun.jsonc - JSON with comments, processed using tidwall/jsonc
//   - toolrun.yaml / toolrun.yml - YAML configuration
//
// # Variable Interpolation
//
// Configuration files support two placeholders:
//   - {env:VAR_NAME} - Expands to environment variable values
//   - {file:path} - Expands to file contents, escaped for a quoted string
//
// Relative {file:} paths resolve against the directory of the config file;
// ~/ expands to the home directory.
//
// # Denylist Merging
//
// permission.denylist entries accumulate across layers. A layer that sets
// permission.replaceDefaults replaces everything accumulated before it, and
// the resulting validator drops the built-in protected paths.
//
// # Example
//
//	{
//	  "logLevel": "DEBUG",
//	  "tools": {"write": false},
//	  "permission": {"denylist": ["secrets/**"]},
//	  "server": {"port": 4096},
//	  "execution": {"defaultTimeout": "30s"}
//	}
//
// # Paths
//
// GetPaths returns the XDG directories used for data (session storage),
// config, cache and state (log files).
package config
