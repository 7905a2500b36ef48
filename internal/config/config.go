package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755
)

var (
	// ConfigDir is the global configuration directory (~/.mongobar)
	ConfigDir string

	// ConfigFile is the default configuration file
	ConfigFile string

	// DatabasePath is the SQLite database file for run history
	DatabasePath string

	// LogFile is the default rotating log file
	LogFile string

	// KeybindsFile holds user keybinding overrides
	KeybindsFile string

	// ExportDir is where exports without a directory are written
	ExportDir string
)

// Initialize sets up the configuration directories and files
// It creates ~/.mongobar/ if it doesn't exist
func Initialize() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return InitializeAt(filepath.Join(homeDir, ".mongobar"))
}

// InitializeAt is Initialize rooted at dir
func InitializeAt(dir string) error {
	ConfigDir = dir
	ConfigFile = filepath.Join(ConfigDir, "config.yaml")
	DatabasePath = filepath.Join(ConfigDir, "history.db")
	LogFile = filepath.Join(ConfigDir, "mongobar.log")
	KeybindsFile = filepath.Join(ConfigDir, "keybinds.jsonc")
	ExportDir = filepath.Join(ConfigDir, "exports")

	for _, d := range []string{ConfigDir, ExportDir} {
		if err := os.MkdirAll(d, DirPermissions); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}

	// Create a commented starter config if none exists
	if _, err := os.Stat(ConfigFile); os.IsNotExist(err) {
		if err := os.WriteFile(ConfigFile, []byte(starterConfig), FilePermissions); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
	}

	return nil
}

// ExpandPath expands a leading ~/ to the home directory
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}

// ResolveExportPath places bare file names in ExportDir
func ResolveExportPath(path string) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) || filepath.Dir(expanded) != "." || ExportDir == "" {
		return expanded, nil
	}
	return filepath.Join(ExportDir, expanded), nil
}

const starterConfig = `# mongobar configuration
# Every key can also be set with a MONGOBAR_ environment variable
# (log.level -> MONGOBAR_LOG_LEVEL) or the matching command line flag.

# uri: mongodb://localhost:27017/shop
# database: shop     # profiler database, defaults to the one in uri
# trace: ./trace.jsonl
# pacing: fast        # fast | timed
# multiplier: 1.0
# concurrency: 8
# op_timeout: 30s
# readonly: false
# disable_profiler: false
# ignore_fields: [comment]
# export_path: stats.csv
# log:
#   level: info
`
