package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultJWTIssuer is the issuer claim on operator tokens.
const DefaultJWTIssuer = "connector-os"

// JWTConfig holds configuration for operator token generation and validation.
type JWTConfig struct {
	Secret          string
	Issuer          string
	ExpirationHours int
}

// NewJWTConfig creates a new JWT configuration from environment variables.
// It reads JWT_SECRET (required), JWT_ISSUER (default: connector-os) and
// JWT_EXPIRATION_HOURS (default: 24).
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}
	return jwtConfigFromEnv(secret)
}

// OptionalJWTConfig is NewJWTConfig for deployments where auth is opt-in:
// an unset JWT_SECRET returns (nil, nil).
func OptionalJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, nil
	}
	return jwtConfigFromEnv(secret)
}

func jwtConfigFromEnv(secret string) (*JWTConfig, error) {
	expirationStr := os.Getenv("JWT_EXPIRATION_HOURS")
	if expirationStr == "" {
		expirationStr = "24"
	}
	expirationHours, err := strconv.Atoi(strings.TrimSpace(expirationStr))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %w", err)
	}

	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = DefaultJWTIssuer
	}

	cfg := &JWTConfig{
		Secret:          secret,
		Issuer:          issuer,
		ExpirationHours: expirationHours,
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if len(c.Secret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
