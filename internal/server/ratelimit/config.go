package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Tier names reported on rate limit metrics.
const (
	TierDefault = "default"
	TierResolve = "resolve"
	TierScore   = "score"
	TierWrite   = "write"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Tier   string        // Bucket shared by every endpoint in the tier
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from environment variables.
// The resolve and score tier limits can be tuned with
// RATE_LIMIT_RESOLVE_PER_MINUTE and RATE_LIMIT_SCORE_PER_MINUTE.
func LoadConfig() *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{
			Enabled: false,
		}
	}

	defaultLimit := getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 600)
	defaultWindow := getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute)
	cleanupInterval := getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute)

	whitelist := parseIPList(getEnvString("RATE_LIMIT_WHITELIST", ""))
	blacklist := parseIPList(getEnvString("RATE_LIMIT_BLACKLIST", ""))

	endpoints := DefaultEndpointConfigs()
	resolvePerMinute := getEnvInt("RATE_LIMIT_RESOLVE_PER_MINUTE", 0)
	scorePerMinute := getEnvInt("RATE_LIMIT_SCORE_PER_MINUTE", 0)
	for i := range endpoints {
		switch {
		case endpoints[i].Tier == TierResolve && resolvePerMinute > 0:
			endpoints[i].Limit = resolvePerMinute
		case endpoints[i].Tier == TierScore && scorePerMinute > 0:
			endpoints[i].Limit = scorePerMinute
		}
	}

	return &Config{
		Enabled:         enabled,
		DefaultLimit:    defaultLimit,
		DefaultWindow:   defaultWindow,
		CleanupInterval: cleanupInterval,
		Whitelist:       whitelist,
		Blacklist:       blacklist,
		EndpointConfigs: endpoints,
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: paid provider calls (strictest limits)
		{Path: "/resolve", Method: "POST", Tier: TierResolve, Limit: 60, Window: time.Minute, Burst: 10},

		// Tier 2: whole-dataset scoring
		{Path: "/score", Method: "POST", Tier: TierScore, Limit: 30, Window: time.Minute, Burst: 5},
		{Path: "/score/stream", Method: "POST", Tier: TierScore, Limit: 30, Window: time.Minute, Burst: 5},

		// Tier 3: cheap writes
		{Path: "/detect", Method: "POST", Tier: TierWrite, Limit: 300, Window: time.Minute, Burst: 30},
		{Path: "/charges", Method: "POST", Tier: TierWrite, Limit: 300, Window: time.Minute, Burst: 30},

		// Reads use the default limit; /health and /metrics are unlimited.
	}
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
