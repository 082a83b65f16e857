package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shortly/internal/config"
)

var envFile string

// RootCmd is the base command; serve and migrate register themselves on it
var RootCmd = &cobra.Command{
	Use:   "shortly",
	Short: "URL shortener with link safety checks",
	Long: `shortly shortens URLs, screens destinations against threat lists and a
content classifier, and records clicks for the owners of each link.`,
	SilenceUsage: true,
}

// Execute runs the command selected on the command line
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file with environment variables to load before reading the configuration")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
