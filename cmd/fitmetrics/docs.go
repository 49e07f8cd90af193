package main

import (
	"charm.land/glamour/v2"
	"github.com/spf13/cobra"
	"github.com/streamingfast/fitmetrics"
	"go.uber.org/zap"
)

// docsE renders the API usage guide to the terminal
func docsE(cmd *cobra.Command, args []string) error {
	raw, err := cmd.Flags().GetBool("raw")
	if err != nil {
		return err
	}
	if raw {
		cmd.Print(fitmetrics.UsageMD)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		zlog.Debug("failed to create markdown renderer, printing raw", zap.Error(err))
		cmd.Print(fitmetrics.UsageMD)
		return nil
	}

	out, err := renderer.Render(fitmetrics.UsageMD)
	if err != nil {
		zlog.Debug("failed to render markdown, printing raw", zap.Error(err))
		cmd.Print(fitmetrics.UsageMD)
		return nil
	}

	cmd.Print(out)
	return nil
}
