package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "BuildIn7Days", cfg.GitHubOrg)
	assert.Equal(t, "https://api.github.com", cfg.GitHubAPIURL)
	assert.Equal(t, map[string]string{"1083631": "customers-scale-boilerplate"}, cfg.VariantTeams)
	assert.Equal(t, 10*time.Second, cfg.DirectoryTimeout)
	assert.Equal(t, 10*time.Minute, cfg.TeamCacheTTL)
	assert.Equal(t, uint32(5), cfg.BreakerFailures)
	assert.True(t, cfg.DedupeDeliveries)
	assert.False(t, cfg.AckGrantFailures)
	assert.False(t, cfg.LedgerEnabled())
	assert.False(t, cfg.AdminAPIEnabled())
}

func TestLoad_SecretIsNotRequiredAtStartup(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEMON_WEBHOOK_SECRET", "")
	t.Setenv("GITHUB_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.LemonWebhookSecret)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("LEMON_WEBHOOK_SECRET", "whsec")
	t.Setenv("GITHUB_TOKEN", "ghp_x")
	t.Setenv("GITHUB_ORG", "acme")
	t.Setenv("VARIANT_TEAM_MAP", "1:starter,2:pro")
	t.Setenv("DIRECTORY_TIMEOUT", "3s")
	t.Setenv("TEAM_CACHE_TTL", "0s")
	t.Setenv("DATABASE_URL", "postgres://localhost/entitlements")
	t.Setenv("ADMIN_JWT_SECRET", "admin")
	t.Setenv("WEBHOOK_ACK_GRANT_FAILURES", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "whsec", cfg.LemonWebhookSecret)
	assert.Equal(t, "ghp_x", cfg.GitHubToken)
	assert.Equal(t, "acme", cfg.GitHubOrg)
	assert.Equal(t, map[string]string{"1": "starter", "2": "pro"}, cfg.VariantTeams)
	assert.Equal(t, 3*time.Second, cfg.DirectoryTimeout)
	assert.Equal(t, time.Duration(0), cfg.TeamCacheTTL)
	assert.True(t, cfg.AckGrantFailures)
	assert.True(t, cfg.LedgerEnabled())
	assert.True(t, cfg.AdminAPIEnabled())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:             8080,
			GitHubOrg:        "BuildIn7Days",
			VariantTeams:     map[string]string{"1": "team"},
			DirectoryTimeout: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port too low", func(c *Config) { c.Port = 0 }, "PORT"},
		{"port too high", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"empty org", func(c *Config) { c.GitHubOrg = " " }, "GITHUB_ORG"},
		{"empty slug", func(c *Config) { c.VariantTeams["2"] = "" }, "VARIANT_TEAM_MAP"},
		{"zero timeout", func(c *Config) { c.DirectoryTimeout = 0 }, "DIRECTORY_TIMEOUT"},
		{"negative ttl", func(c *Config) { c.TeamCacheTTL = -time.Second }, "TEAM_CACHE_TTL"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
