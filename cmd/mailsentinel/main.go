package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/raaihank/mail-sentinel/internal/config"
	"github.com/raaihank/mail-sentinel/internal/logger"
)

var (
	// Version is overridden by ldflags at build time
	Version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mailsentinel",
	Short: "Email PII masking and classification service",
	Long: `mailsentinel masks personal data in support emails and classifies them.

Examples:
  mailsentinel serve --config configs/config.yaml
  mailsentinel train --dataset data/combined_emails_with_natural_pii.xlsx
  echo "Call 9876543210" | mailsentinel mask`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.AddCommand(serveCmd, trainCmd, maskCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from the logging section
func newLogger(cfg config.LoggingConfig) (*logger.Logger, error) {
	loggerConfig := logger.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
	}

	if cfg.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:    cfg.File.Enabled,
			Path:       cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxAge:     cfg.File.MaxAge,
			MaxBackups: cfg.File.MaxBackups,
			Compress:   cfg.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

// loadConfig loads configuration and logger for one-shot commands
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}
