// Command graphmind serves generated knowledge graphs and lays them out for viewing.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/psidex/graphmind/internal/config"
	"github.com/psidex/graphmind/internal/lib"
)

var (
	configPath string
	logLevel   string
	hubURL     string

	cfg    config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", bad.Sprint("Error:"), err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "graphmind",
	Short: "Explore ideas as knowledge graphs",
	Long: `graphmind builds knowledge graphs of ideas with a language model, stores them, and
serves them to viewers that lay them out radially by node degree.

Settings come from graphmind.yaml (or --config), then .env and GRAPHMIND_* variables,
then flags.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default graphmind.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&hubURL, "hub", "", "base URL of the hub, e.g. http://127.0.0.1:8080")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if hubURL != "" {
		cfg.Client.HubURL = hubURL
	}

	level, err := lib.ParseSLogLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger = lib.NiceLogger(os.Stderr, level)
	return nil
}
