package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saadbelcaidx/connector-os/internal/config"
	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/db"
	"github.com/saadbelcaidx/connector-os/internal/events"
	"github.com/saadbelcaidx/connector-os/internal/logging"
	"github.com/saadbelcaidx/connector-os/internal/pipeline"
	"github.com/saadbelcaidx/connector-os/internal/providers"
	"github.com/saadbelcaidx/connector-os/internal/registry"
	"github.com/saadbelcaidx/connector-os/internal/schemas"
	"github.com/saadbelcaidx/connector-os/internal/store"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// loadConfig reads the config file (if any), applies environment overrides
// and defaults, and validates the result.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if configFile != "" {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	merged := cfg.MergeWithDefaults(config.Defaults())
	if verbose {
		merged.Verbose = true
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Verbose {
		return logging.New(true)
	}
	return logging.WithLevel(cfg.LogLevel)
}

func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.SchemasFile != "" {
		return registry.LoadFile(cfg.SchemasFile)
	}
	return registry.Default()
}

// loadProfile reads a capability profile and checks it against both the
// JSON schema and the struct rules.
func loadProfile(path string) (*types.CapabilityProfile, error) {
	if path == "" {
		return nil, fmt.Errorf("profile is required (use --profile or set profile in the config file)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := schemas.ValidateProfile(data); err != nil {
		return nil, fmt.Errorf("profile does not validate against schema: %w", err)
	}

	var profile types.CapabilityProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return &profile, nil
}

// readRecords reads a dataset: a JSON array of objects, or an object with a
// "records" array.
func readRecords(path string) ([]types.RawRecord, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var records []types.RawRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var wrapped struct {
		Records []types.RawRecord `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse input JSON: %w", err)
	}
	return wrapped.Records, nil
}

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("--in is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// backend holds the collaborators built from configuration. Every field is
// optional; close releases whatever was opened.
type backend struct {
	db        *db.DB
	resolver  *contact.Resolver
	charges   contact.ChargeGuard
	store     pipeline.Store
	publisher events.Publisher
	closers   []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend wires storage, providers and events from cfg. Contact state
// lives in Redis when REDIS_URL is set, in Postgres when only DATABASE_URL
// is set, and in memory otherwise.
func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	b := &backend{}
	ok := false
	defer func() {
		if !ok {
			b.close()
		}
	}()

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, database.Close)
		b.db = database
		b.store = database
	}

	var (
		cache contact.Cache
		idem  contact.IdempotencyStore
	)
	switch {
	case cfg.RedisURL != "":
		rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		cache, b.charges, idem = redisStores(rdb, cfg)
	case b.db != nil:
		cache = b.db.Contacts()
		b.charges = b.db.Charges(cfg.ChargeWindow.Std())
		idem = b.db.Resolutions(0, 0)
	default:
		cache = store.NewMemoryCache()
		b.charges = store.NewMemoryChargeGuard(cfg.ChargeWindow.Std(), nil)
		idem = store.NewMemoryIdempotency(0, 0, nil)
	}

	provs, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}
	if len(provs) > 0 {
		deps := contact.Deps{
			Cache:       cache,
			ChargeGuard: b.charges,
			Providers:   provs,
			Idempotency: idem,
		}
		if cfg.Verifier != nil {
			v, err := providers.NewHTTPVerifier(providers.VerifierConfig{
				URL:     cfg.Verifier.URL,
				APIKey:  cfg.Verifier.APIKey,
				Timeout: cfg.Verifier.Timeout.Std(),
			}, nil)
			if err != nil {
				return nil, err
			}
			deps.Verifier = v
		}

		resolver, err := contact.NewResolver(deps, contact.Options{
			Freshness:   cfg.ContactFreshness.Std(),
			StepTimeout: cfg.StepTimeout.Std(),
			Concurrency: cfg.ResolveConcurrency,
			Logger:      log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create resolver: %w", err)
		}
		if b.resolver, err = resolver.WithSupplier(cfg.Supplier); err != nil {
			return nil, err
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		pcfg := events.DefaultProducerConfig()
		pcfg.Brokers = cfg.KafkaBrokers
		pcfg.TopicPrefix = cfg.KafkaTopicPrefix
		producer, err := events.NewProducer(pcfg, log)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() {
			if err := producer.Close(); err != nil {
				log.Warn("failed to close producer", zap.Error(err))
			}
		})
		b.publisher = producer
	}

	ok = true
	return b, nil
}

func redisStores(rdb *redis.Client, cfg *config.Config) (contact.Cache, contact.ChargeGuard, contact.IdempotencyStore) {
	return store.NewRedisCache(rdb, 0),
		store.NewRedisChargeGuard(rdb, cfg.ChargeWindow.Std()),
		store.NewRedisIdempotency(rdb, store.DefaultInFlightTTL, store.DefaultCompletedTTL)
}

// buildProviders returns the waterfall in config order, with the static
// contacts file last.
func buildProviders(cfg *config.Config) ([]contact.Provider, error) {
	var out []contact.Provider
	for _, pc := range cfg.Providers {
		p, err := providers.NewHTTPProvider(providers.Config{
			Name:        pc.Name,
			URL:         pc.URL,
			APIKey:      pc.APIKey,
			ContactPath: pc.ContactPath,
			Timeout:     pc.Timeout.Std(),
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", pc.Name, err)
		}
		out = append(out, p)
	}
	if cfg.ContactsFile != "" {
		static, err := providers.LoadStatic("static", cfg.ContactsFile)
		if err != nil {
			return nil, err
		}
		out = append(out, static)
	}
	return out, nil
}

// errNoProviders is returned by commands that need contact resolution when
// no provider is configured.
var errNoProviders = errors.New("no contact provider configured (set PRIMARY_PROVIDER_URL, CONTACTS_FILE or providers in the config file)")

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func describeDetectError(err error) string {
	var detectErr *registry.DetectError
	if errors.As(err, &detectErr) && len(detectErr.Keys) > 0 {
		return fmt.Sprintf("%v (keys: %s)", detectErr.Cause, strings.Join(detectErr.Keys, ", "))
	}
	return err.Error()
}
