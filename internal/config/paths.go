package config

import (
	"os"
	"path/filepath"

	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/errors"
)

// HomeDir returns the foreman state directory.
// Precedence: explicit configured value, FOREMAN_HOME, ~/.foreman.
func HomeDir(cfg *Config) (string, error) {
	if cfg != nil && cfg.Home != "" {
		return cfg.Home, nil
	}
	if env := os.Getenv(constants.EnvHome); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, constants.ForemanHome), nil
}

// TaskStorePath returns the path to the task queue file under home.
func TaskStorePath(home string) string {
	return filepath.Join(home, constants.TaskStoreFileName)
}

// RegistryPath returns the path to the agent registry file under home.
func RegistryPath(home string) string {
	return filepath.Join(home, constants.RegistryFileName)
}

// PidFilePath returns the path to the daemon pidfile under home.
func PidFilePath(home string) string {
	return filepath.Join(home, constants.PidFileName)
}

// StatusDir returns the directory holding per-agent supervisor status files.
func StatusDir(home string) string {
	return filepath.Join(home, constants.StatusDir)
}

// ManifestPath resolves the dependency manifest path: the configured value
// when set, otherwise <home>/deps.yaml.
func ManifestPath(cfg *Config, home string) string {
	if cfg != nil && cfg.Deps.Manifest != "" {
		return cfg.Deps.Manifest
	}
	return filepath.Join(home, constants.DepsManifestFileName)
}

// PoolPath returns the path to the agent pool definition file under home.
func PoolPath(home string) string {
	return filepath.Join(home, constants.PoolFileName)
}

// AgentPidFilePath returns the pidfile path for a background agent.
func AgentPidFilePath(home, name string) string {
	return filepath.Join(home, constants.PidsDir, name+".pid")
}

// globalConfigPath returns the global config file path if it exists.
// Returns empty string and false if the home directory cannot be determined
// or the config file does not exist.
func globalConfigPath() (string, bool) {
	home, err := HomeDir(nil)
	if err != nil {
		return "", false
	}
	path := filepath.Join(home, constants.GlobalConfigName)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// projectConfigPath returns the project config file path in the current
// working directory.
func projectConfigPath() string {
	return constants.ProjectConfigName
}
