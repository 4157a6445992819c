package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saadbelcaidx/connector-os/internal/observability"
	"github.com/saadbelcaidx/connector-os/internal/pipeline"
	"github.com/saadbelcaidx/connector-os/internal/schemas"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

var (
	scoreInput     string
	scoreProfile   string
	scoreOutput    string
	scoreThreshold int
	scoreStrength  int
	scoreNoGroup   bool
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score and rank a dataset against a capability profile",
	Long:  "Score detects and normalizes a dataset, scores every entity against the capability profile and writes ranked match results that validate against the match_results schema.",
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreInput, "in", "i", "", "Path to dataset JSON (required)")
	scoreCmd.Flags().StringVarP(&scoreProfile, "profile", "p", "", "Path to capability profile JSON (or set profile in the config file)")
	scoreCmd.Flags().StringVarP(&scoreOutput, "out", "o", "", "Path to output match results JSON (required)")
	scoreCmd.Flags().IntVar(&scoreThreshold, "threshold", -1, "Drop results scoring below this (0-100, default from config)")
	scoreCmd.Flags().IntVar(&scoreStrength, "strength", -1, "Override the dataset signal strength (0-100)")
	scoreCmd.Flags().BoolVar(&scoreNoGroup, "no-group", false, "Keep hiring postings one entity per posting")
	_ = scoreCmd.MarkFlagRequired("in")
	_ = scoreCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	profile, err := loadProfile(firstNonEmpty(scoreProfile, cfg.Profile))
	if err != nil {
		return err
	}
	records, err := readRecords(scoreInput)
	if err != nil {
		return err
	}

	opts := pipeline.RunOptions{
		Records:   records,
		Profile:   profile,
		Registry:  reg,
		Threshold: cfg.Threshold,
		NoGroup:   scoreNoGroup,
		Logger:    log,
	}
	if scoreThreshold >= 0 {
		opts.Threshold = scoreThreshold
	}
	if scoreStrength >= 0 {
		if scoreStrength > 100 {
			return fmt.Errorf("--strength must be between 0 and 100, got %d", scoreStrength)
		}
		opts.Strength = &scoreStrength
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}

	if err := writeMatchResults(scoreOutput, out.Results); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	observability.NewPrinter(w).PrintMatchResults(out.Results)
	printf(w, "Scored %d entities (schema %s); %d results kept\n", out.Entities, out.SchemaID, len(out.Results.Results))
	printf(w, "Output: %s\n", scoreOutput)
	return nil
}

// writeMatchResults validates results against the match_results schema
// before writing them.
func writeMatchResults(path string, results *types.MatchResults) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := schemas.ValidateMatchResults(data); err != nil {
		return fmt.Errorf("match results do not validate against schema: %w", err)
	}
	return writeJSON(path, results)
}

func readMatchResults(path string) (*types.MatchResults, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := schemas.ValidateMatchResults(data); err != nil {
		return nil, fmt.Errorf("input does not validate against match_results schema: %w", err)
	}
	var results types.MatchResults
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse match results: %w", err)
	}
	return &results, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
