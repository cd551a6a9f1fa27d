// Package cmd implements the feedrewrite command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryan-buckman/feedrewrite/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// logLevel overrides log.level when set.
	logLevel string

	rootCmd = &cobra.Command{
		Use:           "feedrewrite",
		Short:         "Rotate through feeds, rewrite articles with an LLM and publish an RSS feed",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(runCommand())
	rootCmd.AddCommand(importOPMLCommand())
	rootCmd.AddCommand(exportOPMLCommand())
	rootCmd.AddCommand(versionCommand())
}

// loadConfig reads configuration and applies flags bound on cmd.
func loadConfig(cmd *cobra.Command, bind map[string]string) (*config.Config, error) {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		v.Set("log.level", logLevel)
	}
	for key, flag := range bind {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return config.Load(v)
}
