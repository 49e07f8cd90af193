package main

import (
	"encoding/json"
	"fmt"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"github.com/streamingfast/fitmetrics"
)

var (
	metricNameStyle = lipgloss.NewStyle().Bold(true)
	metricFileStyle = lipgloss.NewStyle().Faint(true)
)

// metricsE lists the metrics available in the local data directory
func metricsE(cmd *cobra.Command, args []string) error {
	config, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	catalog, err := fitmetrics.ScanDir(config.DataDir, config.Descriptions)
	if err != nil {
		return fmt.Errorf("failed to scan data directory: %w", err)
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to get json flag: %w", err)
	}

	if asJSON {
		type metricInfo struct {
			Name        string `json:"name"`
			Description string `json:"description,omitempty"`
			File        string `json:"file"`
			Size        int64  `json:"size"`
		}
		metrics := []metricInfo{}
		for _, name := range catalog.Metrics() {
			file, _ := catalog.File(name)
			metrics = append(metrics, metricInfo{
				Name:        name,
				Description: catalog.Description(name),
				File:        file.Name,
				Size:        file.Size,
			})
		}
		data, err := json.MarshalIndent(metrics, "", "    ")
		if err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if catalog.Len() == 0 {
		cmd.Printf("No metric data files in %s.\n", config.DataDir)
		cmd.Println("Run 'fitmetrics sync' to download them from the object store.")
		return nil
	}

	for _, name := range catalog.Metrics() {
		file, _ := catalog.File(name)

		line := metricNameStyle.Render(name)
		if description := catalog.Description(name); description != "" {
			line += "  " + description
		}
		cmd.Println(line)
		cmd.Println("  " + metricFileStyle.Render(fmt.Sprintf("%s (%s)", file.Name, humanBytes(file.Size))))
	}

	return nil
}
