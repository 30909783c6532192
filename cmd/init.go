package cmd

import (
	"errors"
	"fmt"
	"os"
	"toolshed/internal/config"
	"toolshed/internal/store"

	"github.com/spf13/cobra"
)

var overwriteConfig bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Long: `Write the built-in configuration to the file named by --config
(toolshed.json by default) so it can be edited. Relative paths in the file
are resolved against the directory holding it.`,
	Args: cobra.NoArgs,
	// The file being created may not exist or may be invalid.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runInit,
}

func init() {
	initCmd.Flags().BoolVar(&overwriteConfig, "force", false, "Overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !overwriteConfig {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", configPath, err)
	}

	if err := store.WriteJSON(configPath, config.Default()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote default configuration to %s\n", configPath)
	return nil
}
