package main

import (
	"fmt"

	"github.com/gartstein/hrflow/internal/hrflow/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "hrflow",
	Short:         "Onboarding document assembly",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(bulkCmd)
	rootCmd.AddCommand(checkConfigCmd)
	rootCmd.AddCommand(eventsCmd)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
}

// setup loads the configuration and builds the logger every command uses.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, initLogger(cfg.LogLevel), nil
}

// initLogger initializes a Zap production logger at the given level.
func initLogger(level string) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zcfg.Level = lvl
	}
	logger, err := zcfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func syncLogger(logger *zap.Logger) {
	// stderr sync fails on some terminals; nothing useful to do about it.
	_ = logger.Sync()
}
