package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
	"github.com/streamingfast/logging"
	"go.uber.org/zap"
)

// Version is set via ldflags at build time
var version = "dev"

var zlog, _ = logging.PackageLogger("fitmetrics", "github.com/streamingfast/fitmetrics/cmd/main")

func init() {
	logging.InstantiateLoggers(logging.WithDefaultLevel(zap.InfoLevel))
}

func main() {
	Run(
		"fitmetrics <command>",
		"Activity metrics API over parquet files synced from object storage",

		ConfigureVersion(version),
		ConfigureViper("FITMETRICS"),

		// Default command (no subcommand = serve)
		Execute(serveE),
		Flags(func(flags *pflag.FlagSet) {
			configFlags(flags)
			flags.Bool("skip-sync", false, "Serve the existing data directory without an initial sync")
		}),

		Command(serveE,
			"serve",
			"Sync data files from the object store and serve the metrics API",
			Description(`
				Refreshes the local data directory from the configured object store,
				then serves the metrics query API over it:
				- GET /metrics lists the available metrics
				- GET /metrics/{name} queries one metric with entity and date filters
				- POST /refresh-metrics re-syncs the data directory without a restart
				- POST /upload-url generates a presigned upload URL

				Without a configured store, serving starts directly over whatever the
				local data directory holds.
			`),
			Flags(func(flags *pflag.FlagSet) {
				configFlags(flags)
				flags.Bool("skip-sync", false, "Serve the existing data directory without an initial sync")
			}),
		),

		Command(syncE,
			"sync",
			"Download data files from the object store into the local data directory",
			Description(`
				Lists the configured object store and downloads every data file into
				the local data directory. The previous directory contents are replaced
				in one atomic swap, a failed sync leaves them untouched.
			`),
			Flags(configFlags),
		),

		Command(metricsE,
			"metrics",
			"List the metrics available in the local data directory",
			Flags(func(flags *pflag.FlagSet) {
				configFlags(flags)
				flags.Bool("json", false, "Print the metric list as JSON")
			}),
		),

		Command(uploadURLE,
			"upload-url <file-name>",
			"Generate a presigned URL to upload a data file to the object store",
			Description(`
				Generates a time-limited presigned URL that accepts an HTTP PUT of the
				named data file, without handing out store credentials. The file lands
				under the store prefix the sync reads from, so the next refresh picks
				it up.
			`),
			ExactArgs(1),
			Flags(func(flags *pflag.FlagSet) {
				configFlags(flags)
				flags.Int("expiry-secs", 0, "Override the configured URL lifetime in seconds")
				flags.Bool("json", false, "Print the presigned URL as JSON")
			}),
		),

		Command(docsE,
			"docs",
			"Show the API usage guide",
			Flags(func(flags *pflag.FlagSet) {
				flags.Bool("raw", false, "Print raw markdown without terminal rendering")
			}),
		),

		Command(configE,
			"config",
			"Show the resolved configuration",
			Description(`
				Prints the configuration after merging defaults, the config file,
				environment variables and command line flags. Secrets are redacted.
			`),
			Flags(configFlags),
		),

		Command(cleanE,
			"clean",
			"Remove the local data directory",
			Description(`
				Removes the local data directory and everything in it. The object
				store is not touched, 'fitmetrics sync' restores the files.
			`),
			Flags(func(flags *pflag.FlagSet) {
				configFlags(flags)
				flags.Bool("force", false, "Skip the confirmation prompt")
			}),
		),

		OnCommandError(func(err error) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			zlog.Debug("command error", zap.Error(err))
			os.Exit(1)
		}),
	)
}
