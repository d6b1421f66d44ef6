package main

import (
	"fmt"
	"os"

	"github.com/newthinker/swingsim/internal/config"
	"github.com/newthinker/swingsim/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "swingsim",
	Short: "swingsim - single-ticker swing trading backtester",
	Long: `swingsim replays a swing strategy over daily bars, resolving stops and
profit targets on intraday bars, with risk-based sizing, partial exits and
ratcheted levels across open positions.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

// loadConfig reads and validates the configuration and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	opts := logger.Options{Development: debug || cfg.Log.Development, Level: cfg.Log.Level}
	if debug {
		opts.Level = "debug"
	}
	log, err := logger.New(opts)
	if err != nil {
		return nil, nil, err
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
