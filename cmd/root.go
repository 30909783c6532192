package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"toolshed/internal/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "toolshed",
	Short: "Toolshed is a set of local housekeeping tools",
	Long: `Toolshed bundles small tools for keeping a workstation tidy.
It sorts downloads into category folders, audits and prunes merged git
branches, watches the LAN for new devices and shows which processes
hold listening ports. Each tool has a one-shot command and a JSON API
served by its "serve" subcommand.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "toolshed.json", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(branchesCmd)
	rootCmd.AddCommand(downloadsCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(netmonCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the configuration and the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Source != "" {
		logger.Debug("configuration loaded", "path", cfg.Source)
	} else {
		logger.Debug("using default configuration")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: use debug, info, warn or error", s)
	}
	return level, nil
}
