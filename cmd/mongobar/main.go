package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/studiowebux/mongobar/internal/config"
	"github.com/studiowebux/mongobar/internal/logging"
	"github.com/studiowebux/mongobar/internal/version"
)

// v holds flags, environment and file settings for every command
var v = viper.New()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mongobar",
	Short: "MongoDB trace replay and stress testing",
	Long: `mongobar replays a trace of real MongoDB operations against a target
deployment under controlled concurrency and shows live statistics per
query shape.

Settings come from ~/.mongobar/config.yaml, MONGOBAR_ environment variables
and flags, in increasing precedence.

Examples:
  mongobar pull --duration 5m --enable-profiler --out trace.jsonl
  mongobar replay trace.jsonl                     # Replay with the dashboard
  mongobar replay trace.jsonl --pacing timed -m 2 # Original timing, twice as fast
  mongobar replay trace.jsonl --headless --export run.csv
  mongobar history                                # List past runs`,
	Version:       version.Get().Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Flags shared by every command
var (
	flagConfig string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default ~/.mongobar/config.yaml)")
	pf.String("uri", "", "MongoDB connection string")
	pf.String("log-file", "", "Log file (default ~/.mongobar/mongobar.log)")
	pf.String("log-level", "", "Log level (debug/info/warn/error)")
	pf.String("log-format", "", "Log format (text/json)")

	bindFlags(pf, map[string]string{
		"uri":        "uri",
		"log.file":   "log-file",
		"log.level":  "log-level",
		"log.format": "log-format",
	})

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(keybindsCmd)
	rootCmd.AddCommand(versionCmd)
}

// bindFlags binds config keys to the named flags of fs
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

// loadConfig prepares the config directory and resolves settings
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg, err := config.Load(v, flagConfig)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the shared logger. Commands that do not own the
// terminal also log to stderr.
func newLogger(cfg *config.Config, stderr bool) (*logrus.Logger, io.Closer, error) {
	file, err := config.ExpandPath(cfg.Log.File)
	if err != nil {
		return nil, nil, err
	}
	return logging.New(logging.Options{
		File:       file,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Stderr:     stderr,
	})
}
