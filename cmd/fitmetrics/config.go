package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configE shows the resolved configuration
func configE(cmd *cobra.Command, args []string) error {
	config, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	redacted := *config
	if redacted.S3.SecretAccessKey != "" {
		redacted.S3.SecretAccessKey = "****"
	}

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	cmd.Print(string(data))
	return nil
}
