package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTConfig(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		expiration string
		issuer     string
		wantErr    string
		wantHours  int
		wantIssuer string
	}{
		{name: "defaults", secret: "a-long-enough-secret", wantHours: 24, wantIssuer: DefaultJWTIssuer},
		{name: "custom", secret: "a-long-enough-secret", expiration: "48", issuer: "ops", wantHours: 48, wantIssuer: "ops"},
		{name: "missing secret", wantErr: "JWT_SECRET"},
		{name: "short secret", secret: "short", wantErr: "at least 16"},
		{name: "bad expiration", secret: "a-long-enough-secret", expiration: "soon", wantErr: "JWT_EXPIRATION_HOURS"},
		{name: "zero expiration", secret: "a-long-enough-secret", expiration: "0", wantErr: "at least 1 hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("JWT_EXPIRATION_HOURS", tt.expiration)
			t.Setenv("JWT_ISSUER", tt.issuer)

			cfg, err := NewJWTConfig()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Nil(t, cfg)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.secret, cfg.Secret)
			assert.Equal(t, tt.wantHours, cfg.ExpirationHours)
			assert.Equal(t, tt.wantIssuer, cfg.Issuer)
		})
	}
}

func TestOptionalJWTConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cfg, err := OptionalJWTConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)

	t.Setenv("JWT_SECRET", "a-long-enough-secret")
	cfg, err = OptionalJWTConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
}
