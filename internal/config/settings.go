package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmespath/go-jmespath"
	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// EnvPrefix prefixes environment overrides
const EnvPrefix = "MONGOBAR"

// Config is the resolved runtime configuration
type Config struct {
	URI      string `mapstructure:"uri"`
	PoolSize uint64 `mapstructure:"pool_size"`
	// Database is the database whose profiler is read by pull and
	// silenced by disable_profiler; empty means the database in uri
	Database string `mapstructure:"database"`

	Trace   string `mapstructure:"trace"`
	Source  string `mapstructure:"source"`
	LiveURL string `mapstructure:"live_url"`

	Pacing     string        `mapstructure:"pacing"`
	Multiplier float64       `mapstructure:"multiplier"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	MaxRate    float64       `mapstructure:"max_rate"`

	Concurrency      int           `mapstructure:"concurrency"`
	Step             int           `mapstructure:"step"`
	OpTimeout        time.Duration `mapstructure:"op_timeout"`
	AbortGrace       time.Duration `mapstructure:"abort_grace"`
	FailureThreshold int           `mapstructure:"failure_threshold"`

	Strict          bool     `mapstructure:"strict"`
	ReadOnly        bool     `mapstructure:"readonly"`
	DisableProfiler bool     `mapstructure:"disable_profiler"`
	IgnoreFields    []string `mapstructure:"ignore_fields"`
	Filter          string   `mapstructure:"filter"`

	ExportPath   string `mapstructure:"export_path"`
	ExportFormat string `mapstructure:"export_format"`

	Dashboard   bool          `mapstructure:"dashboard"`
	Tick        time.Duration `mapstructure:"tick"`
	Keybinds    string        `mapstructure:"keybinds"`
	HistoryDB   string        `mapstructure:"history_db"`
	MetricsAddr string        `mapstructure:"metrics_addr"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig configures the log sink
type LogConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// SetDefaults registers every key with its default value. Registering all
// keys also lets environment overrides reach keys absent from the file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("uri", "mongodb://localhost:27017")
	v.SetDefault("pool_size", 0)
	v.SetDefault("database", "")
	v.SetDefault("trace", "")
	v.SetDefault("source", "file")
	v.SetDefault("live_url", "")
	v.SetDefault("pacing", "fast")
	v.SetDefault("multiplier", 1.0)
	v.SetDefault("max_delay", "10s")
	v.SetDefault("max_rate", 0.0)
	v.SetDefault("concurrency", 8)
	v.SetDefault("step", 1)
	v.SetDefault("op_timeout", "30s")
	v.SetDefault("abort_grace", "2s")
	v.SetDefault("failure_threshold", 20)
	v.SetDefault("strict", true)
	v.SetDefault("readonly", false)
	v.SetDefault("disable_profiler", false)
	v.SetDefault("ignore_fields", []string{})
	v.SetDefault("filter", "")
	v.SetDefault("export_path", "")
	v.SetDefault("export_format", "")
	v.SetDefault("dashboard", true)
	v.SetDefault("tick", "100ms")
	v.SetDefault("keybinds", KeybindsFile)
	v.SetDefault("history_db", DatabasePath)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log.file", LogFile)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}

// Load resolves the configuration from defaults, the config file at path
// (or ConfigFile when path is empty), MONGOBAR_ environment variables and
// any flags already bound to v, in increasing precedence. Commands that
// replay call Validate on the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = ConfigFile
	}
	if path != "" {
		if err := readFile(v, path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// readFile reads YAML, JSON or JSONC into v
func readFile(v *viper.Viper, path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(expanded)) {
	case ".json", ".jsonc":
		v.SetConfigType("json")
		data = jsonc.ToJSON(data)
	default:
		v.SetConfigType("yaml")
	}
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", expanded, err)
	}
	return nil
}

// Validate rejects settings the replay cannot run with. Errors name the
// offending key.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency: must be at least 1, got %d", c.Concurrency)
	}
	if c.Step < 1 {
		return fmt.Errorf("step: must be at least 1, got %d", c.Step)
	}
	if c.OpTimeout <= 0 {
		return fmt.Errorf("op_timeout: must be positive, got %s", c.OpTimeout)
	}
	if c.AbortGrace < 0 {
		return fmt.Errorf("abort_grace: must not be negative, got %s", c.AbortGrace)
	}
	if c.MaxRate < 0 {
		return fmt.Errorf("max_rate: must not be negative, got %g", c.MaxRate)
	}
	if c.FailureThreshold < 0 {
		return fmt.Errorf("failure_threshold: must not be negative, got %d", c.FailureThreshold)
	}

	switch c.Pacing {
	case "fast":
	case "timed":
		if c.Multiplier <= 0 {
			return fmt.Errorf("multiplier: must be positive, got %g", c.Multiplier)
		}
	default:
		return fmt.Errorf("pacing: unknown mode %q (want fast or timed)", c.Pacing)
	}

	switch c.Source {
	case "file":
		if c.Trace == "" {
			return fmt.Errorf("trace: a trace path is required for the file source")
		}
	case "live":
		if c.LiveURL == "" {
			return fmt.Errorf("live_url: a websocket url is required for the live source")
		}
	default:
		return fmt.Errorf("source: unknown source %q (want file or live)", c.Source)
	}

	switch c.ExportFormat {
	case "", "csv", "tsv", "json", "yaml":
	default:
		return fmt.Errorf("export_format: unknown format %q", c.ExportFormat)
	}

	if c.Filter != "" {
		if _, err := jmespath.Compile(c.Filter); err != nil {
			return fmt.Errorf("filter: invalid JMESPath expression: %w", err)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q (want text or json)", c.Log.Format)
	}
	return nil
}

// ExportFile returns the export path with the configured format applied to
// paths that carry no extension
func (c *Config) ExportFile() string {
	if c.ExportPath == "" || c.ExportFormat == "" || filepath.Ext(c.ExportPath) != "" {
		return c.ExportPath
	}
	return c.ExportPath + "." + c.ExportFormat
}

// ProfilerDatabase returns the database the profiler commands act on
func (c *Config) ProfilerDatabase() (string, error) {
	if c.Database != "" {
		return c.Database, nil
	}
	cs, err := connstring.Parse(c.URI)
	if err != nil {
		return "", fmt.Errorf("uri: %w", err)
	}
	if cs.Database == "" {
		return "", errors.New("database: not set and uri names no database")
	}
	return cs.Database, nil
}
