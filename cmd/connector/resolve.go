package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/observability"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

var (
	resolveInput    string
	resolveOutput   string
	resolveSupplier string
	resolveTop      int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve contacts for the best entities of a results file",
	Long:  "Resolve reads match results written by score, runs the contact waterfall for the top N entities and writes one outcome per entity.",
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveInput, "in", "i", "", "Path to match results JSON (required)")
	resolveCmd.Flags().StringVarP(&resolveOutput, "out", "o", "", "Path to output contacts JSON (required)")
	resolveCmd.Flags().StringVar(&resolveSupplier, "supplier", "", "Use only this provider, with no fallback")
	resolveCmd.Flags().IntVar(&resolveTop, "top", 0, "Number of top results to resolve (default from config)")
	_ = resolveCmd.MarkFlagRequired("in")
	_ = resolveCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	results, err := readMatchResults(resolveInput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()
	if b.resolver == nil {
		return errNoProviders
	}
	resolver, err := b.resolver.WithSupplier(resolveSupplier)
	if err != nil {
		return err
	}

	top := cfg.ResolveTop
	if resolveTop > 0 {
		top = resolveTop
	}
	entities := topEntities(results.Results, top)

	w := cmd.OutOrStdout()
	outcomes := resolver.ResolveAll(ctx, entities, func(done, total int, res *contact.Result) {
		printf(w, "[%d/%d] %s: %s\n", done, total, res.Domain, res.Outcome)
	})

	if err := writeJSON(resolveOutput, outcomes); err != nil {
		return err
	}
	observability.NewPrinter(w).PrintContacts(outcomes)
	printf(w, "Output: %s\n", resolveOutput)
	return nil
}

func topEntities(results []types.MatchResult, n int) []types.Entity {
	n = min(n, len(results))
	entities := make([]types.Entity, 0, n)
	for _, r := range results[:n] {
		entities = append(entities, r.Entity)
	}
	return entities
}
