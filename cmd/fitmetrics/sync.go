package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/streamingfast/fitmetrics"
)

// syncE downloads the data files from the object store into the local data
// directory.
func syncE(cmd *cobra.Command, args []string) error {
	config, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmd, config)
	if err != nil {
		return err
	}

	syncer := fitmetrics.NewSyncer(store, config.DataDir, config.SyncWorkers)
	result, err := syncer.Sync(cmd.Context())
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	for _, file := range result.Files {
		cmd.Printf("  %s (%s)\n", file.Name, humanBytes(file.Size))
	}
	cmd.Printf("Synced %d files (%s) into %s in %s\n",
		len(result.Files), humanBytes(result.TotalBytes), config.DataDir,
		result.Duration.Round(time.Millisecond))

	return nil
}
