package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/streamingfast/fitmetrics"
)

// configFlags registers the flags shared by every command that resolves the
// service configuration.
func configFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "Path to the config file (default: ./fitmetrics.yaml if present)")
	flags.String("store", "", "Object store URL holding the data files (s3://bucket/prefix or file:///path)")
	flags.String("data-dir", "", "Local directory the data files are synced into and served from")
	flags.String("listen", "", "HTTP listen address for the metrics API")
}

// resolveConfig loads the configuration and applies command line overrides
// on top of the file and environment values.
func resolveConfig(cmd *cobra.Command) (*fitmetrics.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	config, err := fitmetrics.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("store") {
		config.Store, _ = cmd.Flags().GetString("store")
	}
	if cmd.Flags().Changed("data-dir") {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		config.DataDir = fitmetrics.ExpandPath(dataDir)
	}
	if cmd.Flags().Changed("listen") {
		config.Listen, _ = cmd.Flags().GetString("listen")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// openStore resolves the configured object store, with a friendlier error
// for the common unconfigured case.
func openStore(cmd *cobra.Command, config *fitmetrics.Config) (fitmetrics.ObjectStore, error) {
	store, err := fitmetrics.OpenStore(cmd.Context(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to open object store: %w", err)
	}
	return store, nil
}

// humanBytes formats a byte count for display
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
