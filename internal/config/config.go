// Package config provides configuration loading and validation for the codecraft service.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds the service configuration read from the environment.
// Only GEMINI_API_KEY is needed for analysis; everything else has a default
// or switches a feature off when empty.
type Config struct {
	Port        int    `env:"PORT, default=8080"`
	DatabaseURL string `env:"DATABASE_URL"` // empty: in-memory job store, no CRUD routes

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GitHubToken  string `env:"GITHUB_TOKEN"`
	VercelToken  string `env:"VERCEL_TOKEN"`
	VercelTeamID string `env:"VERCEL_TEAM_ID"`

	GeminiBinary  string        `env:"GEMINI_BINARY, default=gemini"`
	GeminiModel   string        `env:"GEMINI_MODEL"`
	GeminiTimeout time.Duration `env:"GEMINI_TIMEOUT, default=10m"`
	AnalysisModel string        `env:"ANALYSIS_MODEL"` // empty: per-tier defaults

	MaxConcurrency int    `env:"MAX_CONCURRENCY, default=4"`
	MaxBatchSize   int    `env:"MAX_BATCH_SIZE, default=10"`
	WorkspaceDir   string `env:"WORKSPACE_DIR"`
	GitAuthorName  string `env:"GIT_AUTHOR_NAME, default=codecraft-bot"`
	GitAuthorEmail string `env:"GIT_AUTHOR_EMAIL, default=codecraft-bot@users.noreply.github.com"`

	JWTSecret          string `env:"JWT_SECRET"`
	JWTExpirationHours int    `env:"JWT_EXPIRATION_HOURS, default=24"`
	BcryptCost         int    `env:"BCRYPT_COST, default=12"`
	PasswordPepper     string `env:"PASSWORD_PEPPER"`

	RateLimitEnabled         bool          `env:"RATE_LIMIT_ENABLED, default=true"`
	RateLimitDefaultLimit    int           `env:"RATE_LIMIT_DEFAULT_LIMIT, default=1000"`
	RateLimitDefaultWindow   time.Duration `env:"RATE_LIMIT_DEFAULT_WINDOW, default=1m"`
	RateLimitCleanupInterval time.Duration `env:"RATE_LIMIT_CLEANUP_INTERVAL, default=5m"`
	RateLimitWhitelist       []string      `env:"RATE_LIMIT_WHITELIST"`
	RateLimitBlacklist       []string      `env:"RATE_LIMIT_BLACKLIST"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*"`
}

// Load reads the configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

// LoadFromMap reads the configuration from a fixed set of values. Intended for tests.
func LoadFromMap(ctx context.Context, values map[string]string) (*Config, error) {
	return load(ctx, envconfig.MapLookuper(values))
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config error: PORT out of range: %d", c.Port)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("config error: MAX_CONCURRENCY must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("config error: MAX_BATCH_SIZE must be at least 1, got %d", c.MaxBatchSize)
	}
	if c.GeminiTimeout <= 0 {
		return fmt.Errorf("config error: GEMINI_TIMEOUT must be positive, got %s", c.GeminiTimeout)
	}
	if c.RateLimitEnabled && (c.RateLimitDefaultLimit < 1 || c.RateLimitDefaultWindow <= 0) {
		return fmt.Errorf("config error: rate limit needs a positive limit and window, got %d per %s",
			c.RateLimitDefaultLimit, c.RateLimitDefaultWindow)
	}
	return nil
}

// batchOverhead covers clone, bootstrap, push and pull request calls of one batch.
const batchOverhead = 5 * time.Minute

// WriteTimeout is the longest a synchronous batch response can take: a shared
// branch batch runs its jobs one after another, each bounded by GEMINI_TIMEOUT.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.MaxBatchSize)*c.GeminiTimeout + batchOverhead
}

// AuthEnabled reports whether mentor authentication and protected routes are configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}
