package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is loaded once at startup and passed explicitly to constructors.
// Nothing here is required to boot: a missing webhook secret fails each
// delivery instead.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	LemonWebhookSecret string  `env:"LEMON_WEBHOOK_SECRET"`
	AckGrantFailures   bool    `env:"WEBHOOK_ACK_GRANT_FAILURES" envDefault:"false"`
	WebhookRateLimit   float64 `env:"WEBHOOK_RATE_LIMIT" envDefault:"20"`
	WebhookRateBurst   int     `env:"WEBHOOK_RATE_BURST" envDefault:"40"`

	GitHubToken  string `env:"GITHUB_TOKEN"`
	GitHubOrg    string `env:"GITHUB_ORG" envDefault:"BuildIn7Days"`
	GitHubAPIURL string `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`

	// VariantTeams maps purchased variant ids to team slugs.
	VariantTeams map[string]string `env:"VARIANT_TEAM_MAP" envDefault:"1083631:customers-scale-boilerplate"`

	DirectoryTimeout   time.Duration `env:"DIRECTORY_TIMEOUT" envDefault:"10s"`
	DirectoryRateLimit float64       `env:"DIRECTORY_RATE_LIMIT" envDefault:"5"`
	DirectoryRateBurst int           `env:"DIRECTORY_RATE_BURST" envDefault:"10"`
	BreakerFailures    uint32        `env:"DIRECTORY_BREAKER_FAILURES" envDefault:"5"`
	BreakerOpenTimeout time.Duration `env:"DIRECTORY_BREAKER_OPEN_TIMEOUT" envDefault:"30s"`
	TeamCacheTTL       time.Duration `env:"TEAM_CACHE_TTL" envDefault:"10m"`
	RedisURL           string        `env:"REDIS_URL"`

	DatabaseURL        string `env:"DATABASE_URL"`
	DedupeDeliveries   bool   `env:"DEDUPE_DELIVERIES" envDefault:"true"`
	DBMaxOpenConns     int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns     int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetimeS int    `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int    `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`

	AdminJWTSecret string `env:"ADMIN_JWT_SECRET"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"entitlements"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if strings.TrimSpace(c.GitHubOrg) == "" {
		errs = append(errs, errors.New("GITHUB_ORG must not be empty"))
	}
	for variant, slug := range c.VariantTeams {
		if strings.TrimSpace(variant) == "" || strings.TrimSpace(slug) == "" {
			errs = append(errs, fmt.Errorf("VARIANT_TEAM_MAP entry %q:%q is incomplete", variant, slug))
		}
	}
	if c.DirectoryTimeout <= 0 {
		errs = append(errs, errors.New("DIRECTORY_TIMEOUT must be positive"))
	}
	if c.TeamCacheTTL < 0 {
		errs = append(errs, errors.New("TEAM_CACHE_TTL must not be negative"))
	}

	return errors.Join(errs...)
}

func (c *Config) LedgerEnabled() bool { return c.DatabaseURL != "" }

func (c *Config) AdminAPIEnabled() bool {
	return c.LedgerEnabled() && c.AdminJWTSecret != ""
}
