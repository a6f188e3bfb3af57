// Package config holds the typed, validated settings a host process feeds
// the engine. Values come from the environment (optionally via .env) or a
// YAML file; every field has a default.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"dealcore/pkg/exchange"
)

// Config drives engine construction.
type Config struct {
	// Market
	Symbol        string  `yaml:"symbol"`
	BaseCurrency  string  `yaml:"base_currency"`
	QuoteCurrency string  `yaml:"quote_currency"`
	DealQuota     float64 `yaml:"deal_quota"`     // quote notional per deal
	ProfitMarkup  float64 `yaml:"profit_markup"`  // SELL premium, decimal fraction
	StepSize      float64 `yaml:"step_size"`
	TickSize      float64 `yaml:"tick_size"`
	MinAmount     float64 `yaml:"min_amount"`
	MaxAmount     float64 `yaml:"max_amount"`
	MinPrice      float64 `yaml:"min_price"`
	MaxPrice      float64 `yaml:"max_price"`
	MinNotional   float64 `yaml:"min_notional"`
	MakerFee      float64 `yaml:"maker_fee"`
	TakerFee      float64 `yaml:"taker_fee"`

	// Placement
	MaxAttempts int           `yaml:"max_attempts"`
	RetryBase   time.Duration `yaml:"retry_base"`

	// Balance cache
	BalanceTTL time.Duration `yaml:"balance_ttl"`

	// Monitors
	StaleInterval      time.Duration `yaml:"stale_interval"`
	StaleMaxAge        time.Duration `yaml:"stale_max_age"`
	StaleMaxDeviation  float64       `yaml:"stale_max_deviation"`
	CascadeInterval    time.Duration `yaml:"cascade_interval"`
	CompletionInterval time.Duration `yaml:"completion_interval"`
	GracePeriod        time.Duration `yaml:"grace_period"`

	// Gateway throttling; 0 disables the decorator.
	GatewayRPS   float64 `yaml:"gateway_rps"`
	GatewayBurst int     `yaml:"gateway_burst"`

	// Persistence
	DBPath string `yaml:"db_path"`

	// DryRun runs against the in-process simulated venue.
	DryRun             bool    `yaml:"dry_run"`
	DryRunQuoteBalance float64 `yaml:"dry_run_quote_balance"`
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the host still starts when .env is missing.
	_ = godotenv.Load()

	c := &Config{
		Symbol:             getEnv("DEAL_SYMBOL", "BTC/USDT"),
		BaseCurrency:       getEnv("DEAL_BASE_CURRENCY", "BTC"),
		QuoteCurrency:      getEnv("DEAL_QUOTE_CURRENCY", "USDT"),
		DealQuota:          getEnvFloat("DEAL_QUOTA", 100),
		ProfitMarkup:       getEnvFloat("DEAL_PROFIT_MARKUP", 0.005),
		StepSize:           getEnvFloat("DEAL_STEP_SIZE", 0.00001),
		TickSize:           getEnvFloat("DEAL_TICK_SIZE", 0.01),
		MinAmount:          getEnvFloat("DEAL_MIN_AMOUNT", 0),
		MaxAmount:          getEnvFloat("DEAL_MAX_AMOUNT", 0),
		MinPrice:           getEnvFloat("DEAL_MIN_PRICE", 0),
		MaxPrice:           getEnvFloat("DEAL_MAX_PRICE", 0),
		MinNotional:        getEnvFloat("DEAL_MIN_NOTIONAL", 0),
		MakerFee:           getEnvFloat("DEAL_MAKER_FEE", 0.001),
		TakerFee:           getEnvFloat("DEAL_TAKER_FEE", 0.001),
		MaxAttempts:        getEnvInt("DEAL_MAX_ATTEMPTS", 3),
		RetryBase:          getEnvDuration("DEAL_RETRY_BASE", time.Second),
		BalanceTTL:         getEnvDuration("DEAL_BALANCE_TTL", 30*time.Second),
		StaleInterval:      getEnvDuration("DEAL_STALE_INTERVAL", time.Minute),
		StaleMaxAge:        getEnvDuration("DEAL_STALE_MAX_AGE", 30*time.Minute),
		StaleMaxDeviation:  getEnvFloat("DEAL_STALE_MAX_DEVIATION", 0.05),
		CascadeInterval:    getEnvDuration("DEAL_CASCADE_INTERVAL", 10*time.Second),
		CompletionInterval: getEnvDuration("DEAL_COMPLETION_INTERVAL", 30*time.Second),
		GracePeriod:        getEnvDuration("DEAL_GRACE_PERIOD", time.Minute),
		GatewayRPS:         getEnvFloat("DEAL_GATEWAY_RPS", 0),
		GatewayBurst:       getEnvInt("DEAL_GATEWAY_BURST", 1),
		DBPath:             getEnv("DEAL_DB_PATH", "./data/deals.db"),
		DryRun:             getEnv("DEAL_DRY_RUN", "false") == "true",
		DryRunQuoteBalance: getEnvFloat("DEAL_DRY_RUN_QUOTE_BALANCE", 10000),
	}
	return c, c.Validate()
}

// LoadFile reads a YAML config file, applying the same defaults as Load for
// fields the file leaves unset.
func LoadFile(path string) (*Config, error) {
	c, err := Load()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read file")
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, errors.Wrap(err, "config: parse yaml")
	}
	return c, c.Validate()
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if err := c.Pair().Validate(); err != nil {
		return err
	}
	if c.MaxAttempts <= 0 {
		return errors.New("config: max_attempts must be positive")
	}
	if c.StaleMaxDeviation < 0 || c.StaleMaxDeviation > 1 {
		return errors.New("config: stale_max_deviation must be in [0, 1]")
	}
	return nil
}

// Pair builds the CurrencyPair the engine trades.
func (c *Config) Pair() exchange.CurrencyPair {
	return exchange.CurrencyPair{
		Symbol:        c.Symbol,
		BaseCurrency:  c.BaseCurrency,
		QuoteCurrency: c.QuoteCurrency,
		DealQuota:     c.DealQuota,
		ProfitMarkup:  c.ProfitMarkup,
		StepSize:      c.StepSize,
		TickSize:      c.TickSize,
		Limits: exchange.Limits{
			MinAmount:   c.MinAmount,
			MaxAmount:   c.MaxAmount,
			MinPrice:    c.MinPrice,
			MaxPrice:    c.MaxPrice,
			MinNotional: c.MinNotional,
		},
		Fees: exchange.Fees{Maker: c.MakerFee, Taker: c.TakerFee},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
