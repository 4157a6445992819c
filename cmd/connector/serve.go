package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saadbelcaidx/connector-os/internal/config"
	"github.com/saadbelcaidx/connector-os/internal/server"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing detection, scoring, streamed scoring and contact
resolution. POST endpoints require a bearer token when JWT_SECRET is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config, 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Port = servePort
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	jwtCfg, err := config.OptionalJWTConfig()
	if err != nil {
		return err
	}
	if jwtCfg == nil {
		log.Warn("JWT_SECRET not set; API endpoints are unauthenticated")
	}

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	var profile *types.CapabilityProfile
	if cfg.Profile != "" {
		if profile, err = loadProfile(cfg.Profile); err != nil {
			return err
		}
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
	if b.resolver == nil {
		log.Warn("no contact provider configured; /resolve will answer 503")
	}

	srv, err := server.New(server.Config{
		Port:       cfg.Port,
		Threshold:  cfg.Threshold,
		ResolveTop: cfg.ResolveTop,
	}, server.Deps{
		Registry:  reg,
		Profile:   profile,
		Resolver:  b.resolver,
		Charges:   b.charges,
		Store:     b.store,
		Publisher: b.publisher,
		JWT:       jwtCfg,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("serving", zap.Int("port", cfg.Port), zap.Bool("auth", jwtCfg != nil))
	return srv.Start(ctx)
}
