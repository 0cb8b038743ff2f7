package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/models"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Storage
	DataRoot        string `envconfig:"DATA_ROOT" default:"./data"`
	ArtifactVersion string `envconfig:"ARTIFACT_VERSION" default:"latest"`
	REXBackend      string `envconfig:"REX_BACKEND" default:"file"`

	// HTTP adapters
	HTTPTimeoutSeconds int           `envconfig:"HTTP_TIMEOUT_SECONDS" default:"10"`
	HTTPMaxRetries     int           `envconfig:"HTTP_MAX_RETRIES" default:"3"`
	HTTPBackoffBase    time.Duration `envconfig:"HTTP_BACKOFF_BASE" default:"2s"`
	HTTPRatePerSecond  float64       `envconfig:"HTTP_RATE_PER_SECOND" default:"2"`

	// The Odds API
	OddsAPIKey     string `envconfig:"ODDS_API_KEY"`
	OddsAPIBaseURL string `envconfig:"ODDS_API_BASE_URL" default:"https://api.the-odds-api.com"`
	OddsAPIRegions string `envconfig:"ODDS_API_REGIONS" default:"us"`

	// ESPN schedule feed
	ESPNBaseURL string `envconfig:"ESPN_BASE_URL" default:"https://site.api.espn.com/apis/site/v2/sports"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"propedge"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"propedge"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisEnabled  bool          `envconfig:"REDIS_ENABLED" default:"false"`
	RedisHost     string        `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int           `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisTTL      time.Duration `envconfig:"REDIS_TTL" default:"36h"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Monitoring
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
	MetricsPort    string `envconfig:"METRICS_PORT" default:"9090"`

	// Scheduler
	ScheduleCron   string `envconfig:"SCHEDULE_CRON" default:"0 6 * * *"`
	ScheduleSports string `envconfig:"SCHEDULE_SPORTS" default:"mlb:strikeouts,nhl:shots"`

	// Staking
	KellyFraction float64 `envconfig:"KELLY_FRACTION" default:"0.25"`
	KellyMax      float64 `envconfig:"KELLY_MAX" default:"0.05"`

	// Sport rule overrides (YAML)
	SportProfilePath string `envconfig:"SPORT_PROFILE_PATH"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if present
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, apperr.Configuration("load config", fmt.Errorf("failed to process environment config: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperr.Configuration("load config", fmt.Errorf("invalid configuration: %w", err))
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataRoot) == "" {
		return errors.New("DATA_ROOT is required")
	}

	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSeconds)
	}

	if c.HTTPMaxRetries < 0 {
		return fmt.Errorf("HTTP_MAX_RETRIES must be non-negative, got %d", c.HTTPMaxRetries)
	}

	switch c.REXBackend {
	case "file":
	case "postgres":
		if c.DatabasePassword == "" {
			return errors.New("DATABASE_PASSWORD is required when REX_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("REX_BACKEND must be file or postgres, got %q", c.REXBackend)
	}

	if c.KellyFraction <= 0 || c.KellyFraction > 1 {
		return fmt.Errorf("KELLY_FRACTION must be in (0, 1], got %v", c.KellyFraction)
	}

	if c.KellyMax < 0 || c.KellyMax > 1 {
		return fmt.Errorf("KELLY_MAX must be in [0, 1], got %v", c.KellyMax)
	}

	if _, err := c.ScheduledMarkets(); err != nil {
		return err
	}

	return nil
}

// RequireOddsAPIKey fails when the line feed cannot authenticate
func (c *Config) RequireOddsAPIKey() error {
	if c.OddsAPIKey == "" {
		return apperr.Configuration("odds api", errors.New("ODDS_API_KEY is required"))
	}
	return nil
}

// HTTPTimeout returns the per-call timeout
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Version returns the pinned artifact version, "latest" when unset
func (c *Config) Version() string {
	if strings.TrimSpace(c.ArtifactVersion) == "" {
		return "latest"
	}
	return c.ArtifactVersion
}

// ScheduledMarkets parses SCHEDULE_SPORTS
func (c *Config) ScheduledMarkets() ([]models.Market, error) {
	var markets []models.Market
	for _, part := range strings.Split(c.ScheduleSports, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, err := models.ParseMarketKey(part)
		if err != nil {
			return nil, fmt.Errorf("SCHEDULE_SPORTS: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// Path joins elements under DATA_ROOT
func (c *Config) Path(elem ...string) string {
	return filepath.Join(append([]string{c.DataRoot}, elem...)...)
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// MustLoad loads configuration or exits on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
