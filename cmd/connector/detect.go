package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saadbelcaidx/connector-os/internal/observability"
	"github.com/saadbelcaidx/connector-os/internal/pipeline"
)

var detectInput string

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Identify which known source a dataset came from",
	Long:  "Detect classifies a dataset against the schema registry and prints the matching schema id, or why it was rejected.",
	RunE:  runDetect,
}

func init() {
	detectCmd.Flags().StringVarP(&detectInput, "in", "i", "", "Path to dataset JSON (required)")
	_ = detectCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	records, err := readRecords(detectInput)
	if err != nil {
		return err
	}

	schema, err := pipeline.Detect(reg, records)
	if err != nil {
		return fmt.Errorf("dataset rejected: %s", describeDetectError(err))
	}

	out := cmd.OutOrStdout()
	if cfg.Verbose {
		observability.NewPrinter(out).PrintDetection(schema.ID, schema.Name, schema.SignalType, len(records))
		return nil
	}
	printf(out, "%s\n", schema.ID)
	return nil
}
