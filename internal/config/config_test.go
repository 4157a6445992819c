package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"threshold": 40,
		"contact_freshness": "7d",
		"charge_window": "720h",
		"step_timeout": 15,
		"resolve_concurrency": 8,
		"supplier": "primary",
		"providers": [
			{"name": "primary", "url": "https://primary.example.com/lookup"},
			{"name": "fallback", "url": "https://fallback.example.com/find", "contact_path": "data.person", "timeout": "5s"}
		],
		"kafka_brokers": ["localhost:9092"],
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0o644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 40, cfg.Threshold)
	assert.Equal(t, 7*24*time.Hour, cfg.ContactFreshness.Std())
	assert.Equal(t, 30*24*time.Hour, cfg.ChargeWindow.Std())
	assert.Equal(t, 15*time.Second, cfg.StepTimeout.Std())
	assert.Equal(t, 8, cfg.ResolveConcurrency)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "data.person", cfg.Providers[1].ContactPath)
	assert.Equal(t, 5*time.Second, cfg.Providers[1].Timeout.Std())
	assert.True(t, cfg.Verbose)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0o644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty config", cfg: Config{}},
		{name: "threshold above range", cfg: Config{Threshold: 101}, wantErr: "Threshold"},
		{name: "negative concurrency", cfg: Config{ResolveConcurrency: -1}, wantErr: "ResolveConcurrency"},
		{name: "bad log level", cfg: Config{LogLevel: "loud"}, wantErr: "LogLevel"},
		{name: "provider without url", cfg: Config{Providers: []ProviderConfig{{Name: "primary"}}}, wantErr: "URL"},
		{
			name: "duplicate providers",
			cfg: Config{Providers: []ProviderConfig{
				{Name: "primary", URL: "https://a.example.com"},
				{Name: "Primary", URL: "https://b.example.com"},
			}},
			wantErr: "duplicate provider",
		},
		{
			name:    "unknown supplier",
			cfg:     Config{Supplier: "nobody", Providers: []ProviderConfig{{Name: "primary", URL: "https://a.example.com"}}},
			wantErr: "names no configured provider",
		},
		{name: "negative duration", cfg: Config{StepTimeout: Duration(-time.Second)}, wantErr: "non-negative"},
		{name: "missing profile", cfg: Config{Profile: "/nonexistent/profile.json"}, wantErr: "profile file not found"},
		{name: "verifier needs url", cfg: Config{Verifier: &VerifierConfig{}}, wantErr: "URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		Threshold: 50,
		Supplier:  "primary",
	}

	merged := partial.MergeWithDefaults(Defaults())

	// Custom values should be preserved
	assert.Equal(t, 50, merged.Threshold)
	assert.Equal(t, "primary", merged.Supplier)

	// Default values should fill in empty fields
	assert.Equal(t, DefaultContactFreshness, merged.ContactFreshness.Std())
	assert.Equal(t, DefaultChargeWindow, merged.ChargeWindow.Std())
	assert.Equal(t, DefaultStepTimeout, merged.StepTimeout.Std())
	assert.Equal(t, DefaultResolveConcurrency, merged.ResolveConcurrency)
	assert.Equal(t, DefaultPort, merged.Port)
	assert.Equal(t, DefaultLogLevel, merged.LogLevel)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{Threshold: 10, RedisURL: "redis://localhost:6379/0"}
	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, 10, merged.Threshold)
	assert.Equal(t, "redis://localhost:6379/0", merged.RedisURL)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/connector")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CONTACT_FRESHNESS", "3d")
	t.Setenv("CHARGE_WINDOW", "60d")
	t.Setenv("STEP_TIMEOUT", "5s")
	t.Setenv("RESOLVE_CONCURRENCY", "2")
	t.Setenv("PRIMARY_PROVIDER_URL", "https://primary.example.com")
	t.Setenv("PRIMARY_PROVIDER_KEY", "pk")
	t.Setenv("FALLBACK_PROVIDER_KEY", "fk")
	t.Setenv("VERIFIER_URL", "https://verify.example.com")
	t.Setenv("VERIFIER_KEY", "vk")

	cfg := Config{Providers: []ProviderConfig{{Name: "fallback", URL: "https://fallback.example.com"}}}
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "postgres://localhost/connector", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*24*time.Hour, cfg.ContactFreshness.Std())
	assert.Equal(t, 60*24*time.Hour, cfg.ChargeWindow.Std())
	assert.Equal(t, 5*time.Second, cfg.StepTimeout.Std())
	assert.Equal(t, 2, cfg.ResolveConcurrency)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "fk", cfg.Providers[0].APIKey, "key applied to the existing fallback")
	assert.Equal(t, "primary", cfg.Providers[1].Name)
	assert.Equal(t, "pk", cfg.Providers[1].APIKey)

	require.NotNil(t, cfg.Verifier)
	assert.Equal(t, "vk", cfg.Verifier.APIKey)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	t.Setenv("STEP_TIMEOUT", "soon")
	cfg := Config{}
	assert.Error(t, cfg.ApplyEnv())

	t.Setenv("STEP_TIMEOUT", "")
	t.Setenv("PORT", "eighty")
	assert.Error(t, cfg.ApplyEnv())
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"2d"`), &d))
	assert.Equal(t, 48*time.Hour, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`1.5`), &d))
	assert.Equal(t, 1500*time.Millisecond, d.Std())

	assert.Error(t, json.Unmarshal([]byte(`"xd"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))

	out, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"1m30s"`, string(out))
}
