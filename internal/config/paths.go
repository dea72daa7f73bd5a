package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "toolrun"

// Paths contains the per-user directories of the runtime. They follow the
// XDG base directory layout; on Windows everything lives under
// %LOCALAPPDATA%.
type Paths struct {
	Data   string // $XDG_DATA_HOME/toolrun: session storage
	Config string // $XDG_CONFIG_HOME/toolrun: global toolrun.json
	Cache  string // $XDG_CACHE_HOME/toolrun
	State  string // $XDG_STATE_HOME/toolrun: logs
}

// GetPaths resolves the directories from the environment.
func GetPaths() *Paths {
	return &Paths{
		Data:   xdgDir("XDG_DATA_HOME", ".local", "share"),
		Config: xdgDir("XDG_CONFIG_HOME", ".config"),
		Cache:  xdgDir("XDG_CACHE_HOME", ".cache"),
		State:  xdgDir("XDG_STATE_HOME", ".local", "state"),
	}
}

func xdgDir(env string, homeRel ...string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), appName, filepath.Base(homeRel[len(homeRel)-1]))
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(append(append([]string{home}, homeRel...), appName)...)
}

// EnsurePaths creates every directory, including the storage and log
// directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.Cache, p.State, p.StoragePath(), p.LogPath()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// StoragePath is the default session store root.
func (p *Paths) StoragePath() string {
	return filepath.Join(p.Data, "storage")
}

// LogPath is the directory log files are written to.
func (p *Paths) LogPath() string {
	return filepath.Join(p.State, "log")
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(GetConfigDir(), "toolrun.json")
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".toolrun", "toolrun.json")
}
