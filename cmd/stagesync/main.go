// Command stagesync syncs the performance schedule sheet into the events
// calendar and serves the events API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lotusstage/stagesync/internal/config"
	"github.com/lotusstage/stagesync/internal/logging"
)

var (
	configPath string
	logLevel   string

	loader *config.Loader
	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "stagesync",
	Short: "Sync the performance schedule sheet into the events calendar",
	Long: `stagesync reads the weekly performance schedule from a Google Sheet,
compares it with the events calendar and lets an operator decide, row by row,
which side wins.

Configuration comes from an optional YAML or TOML file (--config) and from
STAGESYNC_* environment variables, e.g. STAGESYNC_DATABASE_URL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := setup(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "data", Title: "Data Commands:"},
		&cobra.Group{ID: "server", Title: "Server Commands:"},
	)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
}

// setup loads the configuration and builds the logger shared by every
// command.
func setup() error {
	var err error
	loader, err = config.NewLoader(configPath)
	if err != nil {
		return err
	}
	cfg, err = loader.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err = logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
