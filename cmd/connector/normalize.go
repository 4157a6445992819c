package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saadbelcaidx/connector-os/internal/normalize"
	"github.com/saadbelcaidx/connector-os/internal/pipeline"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

var (
	normalizeInput  string
	normalizeOutput string
	normalizeGroup  bool
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize a dataset into canonical entities",
	Long:  "Normalize detects a dataset's schema and writes one canonical entity per record as JSON. With --group, hiring postings are merged per company domain.",
	RunE:  runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeInput, "in", "i", "", "Path to dataset JSON (required)")
	normalizeCmd.Flags().StringVarP(&normalizeOutput, "out", "o", "", "Path to output entities JSON (required)")
	normalizeCmd.Flags().BoolVar(&normalizeGroup, "group", false, "Merge hiring postings by company domain")
	_ = normalizeCmd.MarkFlagRequired("in")
	_ = normalizeCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	records, err := readRecords(normalizeInput)
	if err != nil {
		return err
	}

	schema, err := pipeline.Detect(reg, records)
	if err != nil {
		return fmt.Errorf("dataset rejected: %s", describeDetectError(err))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	entities, err := normalize.NormalizeAll(ctx, records, schema)
	if err != nil {
		return fmt.Errorf("failed to normalize records: %w", err)
	}
	if normalizeGroup && schema.SignalType == types.SignalTypeHiring {
		entities = normalize.GroupByDomain(entities)
	}

	if err := writeJSON(normalizeOutput, entities); err != nil {
		return err
	}
	printf(cmd.OutOrStdout(), "Normalized %d records into %d entities (schema %s)\n", len(records), len(entities), schema.ID)
	printf(cmd.OutOrStdout(), "Output: %s\n", normalizeOutput)
	return nil
}
