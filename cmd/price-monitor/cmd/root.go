// Package cmd implements the CLI commands for price-monitor.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/price-monitor/internal/config"
	"github.com/donaldgifford/price-monitor/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "price-monitor",
	Short: "Watch product pages and report price changes",
	Long: "A service that polls subscribed product pages on a fixed interval, " +
		"extracts the current price, records changes, and notifies subscribers.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.AddCommand(versionCommand())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and builds the logger it describes.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}
