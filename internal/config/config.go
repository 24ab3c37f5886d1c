package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"
)

// Config holds every tunable of the service. All values come from the
// environment; pricing rates and match thresholds are injected into the
// pipeline instead of living as package constants.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" env-default:"9090"`

	// Database
	DBType     string `env:"DB_TYPE" env-default:"sqlite"`
	DBHost     string `env:"DB_HOST" env-default:"127.0.0.1"`
	DBPort     string `env:"DB_PORT" env-default:""`
	DBUser     string `env:"DB_USER" env-default:""`
	DBPassword string `env:"DB_PASSWORD" env-default:""`
	DBName     string `env:"DB_NAME" env-default:"labelcheck"`
	SQLitePath string `env:"SQLITE_PATH" env-default:"labelcheck.db"`

	// WhatsApp session store
	SessionDBPath string `env:"WA_SESSION_DB" env-default:"wa_session.db"`

	// Inference
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	ExtractModel    string `env:"EXTRACT_MODEL" env-default:"claude-haiku-4-5-20251001"`
	AnalysisModel   string `env:"ANALYSIS_MODEL" env-default:"claude-sonnet-4-5-20250929"`
	MaxOutputTokens int64  `env:"MAX_OUTPUT_TOKENS" env-default:"4096"`
	// RetryCount is the number of additional attempts after a validation
	// failure. The protocol depends on this being exactly 1.
	RetryCount int `env:"RETRY_COUNT" env-default:"1"`

	// Pricing, USD. Token rates are per million tokens, search rate is per
	// search invocation.
	InputRatePerMTok  string `env:"INPUT_RATE_PER_MTOK" env-default:"3.00"`
	OutputRatePerMTok string `env:"OUTPUT_RATE_PER_MTOK" env-default:"15.00"`
	SearchRate        string `env:"SEARCH_RATE" env-default:"0.01"`

	// Fuzzy matching. Similarity is 1 - levenshtein/maxlen over normalized
	// keys; a candidate below the threshold is a miss.
	FuzzyAcceptThreshold float64 `env:"FUZZY_ACCEPT_THRESHOLD" env-default:"0.84"`

	// Admin API
	AdminUsername string `env:"ADMIN_USERNAME" env-default:"admin"`
	AdminPassword string `env:"ADMIN_PASSWORD" env-default:""`
	JWTSecret     string `env:"JWT_SECRET" env-default:""`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from env: %w", err)
	}
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	if _, err := decimal.NewFromString(cfg.InputRatePerMTok); err != nil {
		return nil, fmt.Errorf("invalid INPUT_RATE_PER_MTOK: %w", err)
	}
	if _, err := decimal.NewFromString(cfg.OutputRatePerMTok); err != nil {
		return nil, fmt.Errorf("invalid OUTPUT_RATE_PER_MTOK: %w", err)
	}
	if _, err := decimal.NewFromString(cfg.SearchRate); err != nil {
		return nil, fmt.Errorf("invalid SEARCH_RATE: %w", err)
	}
	if cfg.FuzzyAcceptThreshold <= 0 || cfg.FuzzyAcceptThreshold > 1 {
		return nil, fmt.Errorf("FUZZY_ACCEPT_THRESHOLD must be in (0,1], got %v", cfg.FuzzyAcceptThreshold)
	}
	return &cfg, nil
}

// InputRate returns the per-token input rate.
func (c *Config) InputRate() decimal.Decimal {
	return perToken(c.InputRatePerMTok)
}

// OutputRate returns the per-token output rate. Generated and reasoning
// tokens are both billed at this rate.
func (c *Config) OutputRate() decimal.Decimal {
	return perToken(c.OutputRatePerMTok)
}

// SearchRequestRate returns the per-invocation web search rate.
func (c *Config) SearchRequestRate() decimal.Decimal {
	d, _ := decimal.NewFromString(c.SearchRate)
	return d
}

func perToken(ratePerMTok string) decimal.Decimal {
	d, _ := decimal.NewFromString(ratePerMTok)
	return d.Div(decimal.NewFromInt(1_000_000))
}
