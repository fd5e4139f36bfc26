package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL: "postgres://localhost/flora",
			Auth:        AuthConfig{AccessSecret: "a", RefreshSecret: "r"},
		}
	}

	for _, tc := range []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"no database", func(c *Config) { c.DatabaseURL = "" }, "database URL is required"},
		{"no access secret", func(c *Config) { c.Auth.AccessSecret = "" }, "token secrets are required"},
		{"no refresh secret", func(c *Config) { c.Auth.RefreshSecret = "" }, "token secrets are required"},
		{"same secrets", func(c *Config) { c.Auth.RefreshSecret = "a" }, "must differ"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://render/flora")
	t.Setenv("PORT", "8080")

	cfg := Config{Addr: "0.0.0.0:5000"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://render/flora", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)

	explicit := Config{Addr: "127.0.0.1:9000", DatabaseURL: "postgres://explicit/flora"}
	explicit.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/flora", explicit.DatabaseURL)
	assert.Equal(t, "127.0.0.1:9000", explicit.Addr)
}
