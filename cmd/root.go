// Package cmd implements the pricescout command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "pricescout",
		Short: "Multi-vendor product price search for Guatemalan stores",
		Long: `pricescout searches several Guatemalan e-commerce stores at once,
streams results as they arrive, and compares prices across vendors.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yml or $CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("pricescout %s\n", version)
		},
	})

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(searchCommand())
	rootCmd.AddCommand(vendorsCommand())
}

// loadConfig resolves configuration and builds the logger shared by all
// subcommands.
func loadConfig() (*config.Config, logger.Logger, error) {
	path := cfgFile
	if path == "" {
		path = config.GetConfigPath("config.yml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
		cfg.Server.Debug = true
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, log, nil
}
