package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// uploadURLE generates a presigned upload URL for a data file
func uploadURLE(cmd *cobra.Command, args []string) error {
	config, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	name := args[0]
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("file name must not contain path separators")
	}

	expirySecs, err := cmd.Flags().GetInt("expiry-secs")
	if err != nil {
		return fmt.Errorf("failed to get expiry-secs flag: %w", err)
	}
	if expirySecs > 0 {
		config.PresignExpirySecs = expirySecs
	}

	store, err := openStore(cmd, config)
	if err != nil {
		return err
	}

	upload, err := store.PresignUpload(cmd.Context(), name, config.PresignExpiry())
	if err != nil {
		return fmt.Errorf("failed to generate upload URL: %w", err)
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to get json flag: %w", err)
	}

	if asJSON {
		data, err := json.MarshalIndent(upload, "", "    ")
		if err != nil {
			return fmt.Errorf("failed to encode upload URL: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Upload URL for %s (expires %s):\n", name, upload.ExpiresAt.Format(time.RFC3339))
	cmd.Printf("  %s %s\n", upload.Method, upload.URL)
	cmd.Println()
	cmd.Println("Upload with:")
	cmd.Printf("  curl -X %s --upload-file %s '%s'\n", upload.Method, name, upload.URL)
	return nil
}
