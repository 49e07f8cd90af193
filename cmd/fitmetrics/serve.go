package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/streamingfast/fitmetrics"
	"go.uber.org/zap"
)

// serveE refreshes the data directory and serves the metrics API until
// interrupted.
func serveE(cmd *cobra.Command, args []string) error {
	config, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	skipSync, err := cmd.Flags().GetBool("skip-sync")
	if err != nil {
		return fmt.Errorf("failed to get skip-sync flag: %w", err)
	}

	var store fitmetrics.ObjectStore
	if config.Store == "" {
		if !skipSync {
			return fmt.Errorf("no object store configured, set --store or AWS_S3_BUCKET_NAME (or pass --skip-sync to serve the existing data directory)")
		}
		zlog.Info("no object store configured, serving local data files only",
			zap.String("data_dir", config.DataDir))
	} else {
		store, err = openStore(cmd, config)
		if err != nil {
			return err
		}

		if skipSync {
			zlog.Info("skipping initial sync", zap.String("data_dir", config.DataDir))
		} else {
			syncer := fitmetrics.NewSyncer(store, config.DataDir, config.SyncWorkers)
			result, err := syncer.Sync(cmd.Context())
			if err != nil {
				return fmt.Errorf("initial sync failed: %w", err)
			}
			cmd.Printf("Synced %d files (%s) from %s\n",
				len(result.Files), humanBytes(result.TotalBytes), config.Store)
		}
	}

	server := fitmetrics.NewServer(config, store)
	go server.Run()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		zlog.Info("received signal, shutting down", zap.String("signal", sig.String()))
		server.Shutdown(nil)
	case <-server.Terminated():
	}

	<-server.Terminated()
	return server.Err()
}
