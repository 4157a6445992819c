package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saadbelcaidx/connector-os/internal/db"
	"github.com/saadbelcaidx/connector-os/internal/observability"
)

var chargesLimit int

var chargesCmd = &cobra.Command{
	Use:   "charges",
	Short: "Show the charge ledger",
	Long:  "Charges lists the most recent entries of the Postgres charge ledger. Requires DATABASE_URL.",
	RunE:  runCharges,
}

var chargesRecordCmd = &cobra.Command{
	Use:   "record EMAIL",
	Short: "Record a charge made outside the resolver",
	Args:  cobra.ExactArgs(1),
	RunE:  runChargesRecord,
}

func init() {
	chargesCmd.Flags().IntVar(&chargesLimit, "limit", 50, "Maximum entries to show")
	chargesCmd.AddCommand(chargesRecordCmd)
	rootCmd.AddCommand(chargesCmd)
}

func openLedger(cmd *cobra.Command) (context.Context, *db.DB, *db.ChargeGuard, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return ctx, database, database.Charges(cfg.ChargeWindow.Std()), nil
}

func runCharges(cmd *cobra.Command, _ []string) error {
	ctx, database, guard, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	entries, err := guard.Entries(ctx, chargesLimit)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintChargeLedger(entries)
	return nil
}

func runChargesRecord(cmd *cobra.Command, args []string) error {
	email := strings.ToLower(strings.TrimSpace(args[0]))
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email: %q", args[0])
	}

	ctx, database, guard, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := guard.Record(ctx, email); err != nil {
		return err
	}
	printf(cmd.OutOrStdout(), "Recorded charge for %s\n", email)
	return nil
}
