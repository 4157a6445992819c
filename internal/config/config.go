// Package config provides configuration loading and validation for the CLI
// and the API server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults applied by MergeWithDefaults via Defaults().
const (
	DefaultContactFreshness   = 7 * 24 * time.Hour
	DefaultChargeWindow       = 30 * 24 * time.Hour
	DefaultStepTimeout        = 20 * time.Second
	DefaultResolveConcurrency = 4
	DefaultResolveTop         = 10
	DefaultPort               = 8080
	DefaultLogLevel           = "info"
)

// ProviderConfig describes one HTTP contact provider in waterfall order.
type ProviderConfig struct {
	Name        string   `json:"name" validate:"required"`
	URL         string   `json:"url" validate:"required,url"`
	APIKey      string   `json:"api_key,omitempty"`
	ContactPath string   `json:"contact_path,omitempty"`
	Timeout     Duration `json:"timeout,omitempty"`
}

// VerifierConfig describes the HTTP email verifier.
type VerifierConfig struct {
	URL     string   `json:"url" validate:"required,url"`
	APIKey  string   `json:"api_key,omitempty"`
	Timeout Duration `json:"timeout,omitempty"`
}

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults, environment
// variables or CLI flags.
type Config struct {
	// Inputs
	SchemasFile string `json:"schemas_file,omitempty"` // Path to a schema registry YAML overriding the built-in one
	Profile     string `json:"profile,omitempty"`      // Path to the capability profile JSON

	// Scoring
	Threshold int `json:"threshold,omitempty" validate:"min=0,max=100"`

	// Contact resolution
	ContactFreshness   Duration         `json:"contact_freshness,omitempty"`
	ChargeWindow       Duration         `json:"charge_window,omitempty"`
	StepTimeout        Duration         `json:"step_timeout,omitempty"`
	ResolveConcurrency int              `json:"resolve_concurrency,omitempty" validate:"min=0,max=64"`
	ResolveTop         int              `json:"resolve_top,omitempty" validate:"min=0"`
	Supplier           string           `json:"supplier,omitempty"`
	Providers          []ProviderConfig `json:"providers,omitempty" validate:"dive"`
	Verifier           *VerifierConfig  `json:"verifier,omitempty"`
	ContactsFile       string           `json:"contacts_file,omitempty"` // Static contacts JSON used as an offline provider

	// Infrastructure
	DatabaseURL      string   `json:"database_url,omitempty"` // PostgreSQL connection URL
	RedisURL         string   `json:"redis_url,omitempty"`
	KafkaBrokers     []string `json:"kafka_brokers,omitempty"`
	KafkaTopicPrefix string   `json:"kafka_topic_prefix,omitempty"`

	// Behavior
	Port     int    `json:"port,omitempty" validate:"min=0,max=65535"`
	Verbose  bool   `json:"verbose,omitempty"`
	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Defaults returns the built-in configuration values.
func Defaults() Config {
	return Config{
		ContactFreshness:   Duration(DefaultContactFreshness),
		ChargeWindow:       Duration(DefaultChargeWindow),
		StepTimeout:        Duration(DefaultStepTimeout),
		ResolveConcurrency: DefaultResolveConcurrency,
		ResolveTop:         DefaultResolveTop,
		Port:               DefaultPort,
		LogLevel:           DefaultLogLevel,
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.ContactFreshness < 0 || c.ChargeWindow < 0 || c.StepTimeout < 0 {
		return fmt.Errorf("config error: durations must be non-negative")
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		key := strings.ToLower(p.Name)
		if seen[key] {
			return fmt.Errorf("config error: duplicate provider name %q", p.Name)
		}
		seen[key] = true
	}
	if c.ContactsFile != "" {
		seen["static"] = true
		if _, err := os.Stat(c.ContactsFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: contacts file not found: %s", c.ContactsFile)
		}
	}
	if c.Supplier != "" && !seen[strings.ToLower(c.Supplier)] {
		return fmt.Errorf("config error: supplier %q names no configured provider", c.Supplier)
	}

	if c.Profile != "" {
		if _, err := os.Stat(c.Profile); os.IsNotExist(err) {
			return fmt.Errorf("config error: profile file not found: %s", c.Profile)
		}
	}
	if c.SchemasFile != "" {
		if _, err := os.Stat(c.SchemasFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: schemas file not found: %s", c.SchemasFile)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.SchemasFile == "" {
		result.SchemasFile = defaults.SchemasFile
	}
	if result.Profile == "" {
		result.Profile = defaults.Profile
	}
	if result.Supplier == "" {
		result.Supplier = defaults.Supplier
	}
	if result.ContactsFile == "" {
		result.ContactsFile = defaults.ContactsFile
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RedisURL == "" {
		result.RedisURL = defaults.RedisURL
	}
	if result.KafkaTopicPrefix == "" {
		result.KafkaTopicPrefix = defaults.KafkaTopicPrefix
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}

	// Slices and pointers: use default if unset
	if len(result.Providers) == 0 {
		result.Providers = defaults.Providers
	}
	if len(result.KafkaBrokers) == 0 {
		result.KafkaBrokers = defaults.KafkaBrokers
	}
	if result.Verifier == nil {
		result.Verifier = defaults.Verifier
	}

	// Numeric fields: use default if zero
	if result.Threshold == 0 {
		result.Threshold = defaults.Threshold
	}
	if result.ContactFreshness == 0 {
		result.ContactFreshness = defaults.ContactFreshness
	}
	if result.ChargeWindow == 0 {
		result.ChargeWindow = defaults.ChargeWindow
	}
	if result.StepTimeout == 0 {
		result.StepTimeout = defaults.StepTimeout
	}
	if result.ResolveConcurrency == 0 {
		result.ResolveConcurrency = defaults.ResolveConcurrency
	}
	if result.ResolveTop == 0 {
		result.ResolveTop = defaults.ResolveTop
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ApplyEnv overrides fields from environment variables. Unset variables
// leave the field unchanged.
func (c *Config) ApplyEnv() error {
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.KafkaTopicPrefix, "KAFKA_TOPIC_PREFIX")
	setString(&c.Supplier, "CONTACT_SUPPLIER")
	setString(&c.ContactsFile, "CONTACTS_FILE")
	setString(&c.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}

	for _, d := range []struct {
		field *Duration
		env   string
	}{
		{&c.ContactFreshness, "CONTACT_FRESHNESS"},
		{&c.ChargeWindow, "CHARGE_WINDOW"},
		{&c.StepTimeout, "STEP_TIMEOUT"},
	} {
		if v := os.Getenv(d.env); v != "" {
			parsed, err := ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", d.env, err)
			}
			*d.field = Duration(parsed)
		}
	}

	for _, n := range []struct {
		field *int
		env   string
	}{
		{&c.ResolveConcurrency, "RESOLVE_CONCURRENCY"},
		{&c.ResolveTop, "RESOLVE_TOP"},
		{&c.Threshold, "SCORE_THRESHOLD"},
		{&c.Port, "PORT"},
	} {
		if v := os.Getenv(n.env); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", n.env, err)
			}
			*n.field = parsed
		}
	}

	c.applyProviderEnv("primary", "PRIMARY_PROVIDER")
	c.applyProviderEnv("fallback", "FALLBACK_PROVIDER")

	if url := os.Getenv("VERIFIER_URL"); url != "" {
		if c.Verifier == nil {
			c.Verifier = &VerifierConfig{}
		}
		c.Verifier.URL = url
	}
	if key := os.Getenv("VERIFIER_KEY"); key != "" && c.Verifier != nil {
		c.Verifier.APIKey = key
	}

	return nil
}

// applyProviderEnv sets or adds the provider called name from
// {prefix}_URL and {prefix}_KEY.
func (c *Config) applyProviderEnv(name, prefix string) {
	url := os.Getenv(prefix + "_URL")
	key := os.Getenv(prefix + "_KEY")
	if url == "" && key == "" {
		return
	}
	for i := range c.Providers {
		if strings.EqualFold(c.Providers[i].Name, name) {
			if url != "" {
				c.Providers[i].URL = url
			}
			if key != "" {
				c.Providers[i].APIKey = key
			}
			return
		}
	}
	if url != "" {
		c.Providers = append(c.Providers, ProviderConfig{Name: name, URL: url, APIKey: key})
	}
}

func setString(field *string, env string) {
	if v := os.Getenv(env); v != "" {
		*field = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
