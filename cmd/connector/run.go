package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saadbelcaidx/connector-os/internal/observability"
	"github.com/saadbelcaidx/connector-os/internal/pipeline"
)

var (
	runInput      string
	runProfile    string
	runOutput     string
	runResolveTop int
	runThreshold  int
	runOperatorID string
	runNoGroup    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline on a dataset",
	Long: `Run detects, normalizes, groups, scores and ranks a dataset, then resolves contacts
for the top results and writes everything, intro facts included, to one JSON file.

When DATABASE_URL is set the run and its steps are recorded in Postgres.
When KAFKA_BROKERS is set match and contact events are published.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "in", "i", "", "Path to dataset JSON (required)")
	runCmd.Flags().StringVarP(&runProfile, "profile", "p", "", "Path to capability profile JSON (or set profile in the config file)")
	runCmd.Flags().StringVarP(&runOutput, "out", "o", "", "Path to output JSON (required)")
	runCmd.Flags().IntVar(&runResolveTop, "resolve-top", -1, "Resolve contacts for this many top results (0 disables, default from config)")
	runCmd.Flags().IntVar(&runThreshold, "threshold", -1, "Drop results scoring below this (0-100, default from config)")
	runCmd.Flags().StringVar(&runOperatorID, "operator", "", "Operator id recorded on the run (default from the profile)")
	runCmd.Flags().BoolVar(&runNoGroup, "no-group", false, "Keep hiring postings one entity per posting")
	_ = runCmd.MarkFlagRequired("in")
	_ = runCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
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
	profile, err := loadProfile(firstNonEmpty(runProfile, cfg.Profile))
	if err != nil {
		return err
	}
	records, err := readRecords(runInput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	w := cmd.OutOrStdout()
	top := cfg.ResolveTop
	switch {
	case runResolveTop >= 0:
		top = runResolveTop
		if top > 0 && b.resolver == nil {
			return errNoProviders
		}
	case b.resolver == nil:
		printf(w, "No contact provider configured; skipping contact resolution\n")
		top = 0
	}

	opts := pipeline.RunOptions{
		Records:    records,
		Profile:    profile,
		Registry:   reg,
		Threshold:  cfg.Threshold,
		NoGroup:    runNoGroup,
		Store:      b.store,
		Publisher:  b.publisher,
		OperatorID: firstNonEmpty(runOperatorID, profile.OperatorID),
		Logger:     log,
		OnProgress: func(event pipeline.ProgressEvent) {
			printf(w, "%s\n", event.Message)
		},
	}
	if runThreshold >= 0 {
		opts.Threshold = runThreshold
	}
	if top > 0 {
		opts.Resolver = b.resolver
		opts.ResolveTop = top
	}

	out, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}
	if err := writeJSON(runOutput, out); err != nil {
		return err
	}

	p := observability.NewPrinter(w)
	p.PrintMatchResults(out.Results)
	p.PrintContacts(out.Contacts)
	if out.RunID != "" {
		printf(w, "Run ID: %s\n", out.RunID)
	}
	printf(w, "Intros ready: %d\n", len(out.Intros))
	printf(w, "Output: %s\n", runOutput)
	return nil
}
