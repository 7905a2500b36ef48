package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/studiowebux/mongobar/internal/config"
	"github.com/studiowebux/mongobar/internal/keybinds"
)

var flagKeybindsWrite bool

var keybindsCmd = &cobra.Command{
	Use:   "keybinds",
	Short: "Check the dashboard keybinding file",
	Long: `Validate the keybinding overrides file (default ~/.mongobar/keybinds.jsonc)
and report conflicts and warnings.

With --write the default bindings are written to the file so they can be
edited. An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runKeybinds,
}

func init() {
	keybindsCmd.Flags().BoolVar(&flagKeybindsWrite, "write", false, "Write the default bindings to the keybinds file")
}

func runKeybinds(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := config.ExpandPath(cfg.Keybinds)
	if err != nil {
		return err
	}

	if flagKeybindsWrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := keybinds.SaveConfig(keybinds.ExportDefaults(keybinds.NewDefaultRegistry()), path); err != nil {
			return fmt.Errorf("failed to write keybinds: %w", err)
		}
		fmt.Printf("Wrote default keybinds to %s\n", path)
		return nil
	}

	overrides, err := keybinds.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("No keybinds file at %s, using defaults\n", path)
		return nil
	}
	if err != nil {
		return err
	}

	result := keybinds.NewValidator().ValidateConfig(overrides)
	fmt.Printf("%s\n%s\n", path, result.String())
	if result.HasErrors() {
		return errors.New("keybinds file has errors")
	}
	return nil
}
