/*
Package config loads runtime configuration from the environment.

PURPOSE:
  One struct for everything tunable: transport credentials, store
  backend, currency presentation, recharge amounts, rate limits, and the
  approval policy. A .env file is honored when present; real environment
  variables win.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	// Transport
	BotToken string `env:"BOT_TOKEN"`
	AdminID  int64  `env:"ADMIN_ID"`

	// Storage: "jsonfile" (default) or "sqlite"
	StoreBackend string `env:"STORE_BACKEND" envDefault:"jsonfile"`
	DataDir      string `env:"DATA_DIR" envDefault:"./data"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/storefront.db"`

	// Admin HTTP surface
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Presentation
	StoreName        string `env:"STORE_NAME" envDefault:"Digital Goods Store"`
	OwnerContact     string `env:"OWNER_CONTACT" envDefault:"@store_support"`
	Currency         string `env:"CURRENCY" envDefault:"IQD"`
	CurrencyExponent int32  `env:"CURRENCY_EXPONENT" envDefault:"0"`

	// Top-up
	RechargeAmounts []int64       `env:"RECHARGE_AMOUNTS" envDefault:"5000,10000,25000,50000,100000" envSeparator:","`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	// Bank transfer instructions
	BankName      string `env:"BANK_NAME" envDefault:""`
	BankAccount   string `env:"BANK_ACCOUNT" envDefault:""`
	AccountHolder string `env:"ACCOUNT_HOLDER" envDefault:""`
	BankIBAN      string `env:"BANK_IBAN" envDefault:""`

	// Admission control at the conversation shell
	RateLimitInterval time.Duration `env:"RATE_LIMIT_INTERVAL" envDefault:"1500ms"`
	RateLimitPerMin   int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"15"`

	// Policy: when true, new accounts wait for operator approval instead
	// of being approved on first contact.
	RequireApproval bool `env:"REQUIRE_APPROVAL" envDefault:"false"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE" envDefault:""`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // absent .env is fine

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not set")
	}
	if cfg.AdminID == 0 {
		return nil, fmt.Errorf("ADMIN_ID is not set")
	}
	return cfg, nil
}
