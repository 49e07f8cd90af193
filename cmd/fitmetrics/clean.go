package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
)

// cleanE removes the local data directory
func cleanE(cmd *cobra.Command, args []string) error {
	config, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("failed to get force flag: %w", err)
	}

	if _, err := os.Stat(config.DataDir); os.IsNotExist(err) {
		cmd.Printf("Data directory %s does not exist, nothing to clean.\n", config.DataDir)
		return nil
	}

	if !force {
		answeredYes, _ := AskConfirmation("Remove data directory %s and everything in it?", config.DataDir)
		if !answeredYes {
			cmd.Println("Aborted.")
			return nil
		}
	}

	if err := os.RemoveAll(config.DataDir); err != nil {
		return fmt.Errorf("failed to remove data directory: %w", err)
	}

	cmd.Printf("Removed %s\n", config.DataDir)
	return nil
}
