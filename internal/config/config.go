package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccrualMode selects how reward increments relate to elapsed time.
type AccrualMode string

const (
	// AccrualPerTick adds one full daily-rate increment on every scheduler
	// tick, regardless of how much wall-clock time the tick spans.
	AccrualPerTick AccrualMode = "per_tick"
	// AccrualPerDay prorates the increment by the time elapsed since the
	// stake last accrued, so totals track real days rather than tick count.
	AccrualPerDay AccrualMode = "per_day"
)

const (
	defaultAppName       = "StakeLedger"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultShutdownDelay = 10 * time.Second
	defaultIdemTTL       = 24 * time.Hour

	defaultAPR              = "12"
	defaultAccrualInterval  = 5 * time.Minute
	defaultFlexibleMaturity = 6 * time.Minute
	defaultStoreTimeout     = 5 * time.Second
	defaultAccrualMode      = AccrualPerTick
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// Staking policy knobs.
	APR              decimal.Decimal // annual percentage rate, e.g. 12 for 12%
	AccrualInterval  time.Duration   // scheduler tick cadence
	AccrualMode      AccrualMode     // per_tick or per_day
	FlexibleMaturity time.Duration   // minimum hold before a flexible stake matures
	StoreTimeout     time.Duration   // per-stake store deadline inside a tick
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdemTTL,
		AccrualInterval:  defaultAccrualInterval,
		AccrualMode:      defaultAccrualMode,
		FlexibleMaturity: defaultFlexibleMaturity,
		StoreTimeout:     defaultStoreTimeout,
	}

	apr, err := decimal.NewFromString(getEnv("STAKING_APR", defaultAPR))
	if err != nil {
		return Config{}, fmt.Errorf("invalid STAKING_APR: %w", err)
	}
	if apr.IsNegative() {
		return Config{}, fmt.Errorf("STAKING_APR must not be negative")
	}
	cfg.APR = apr

	if v := os.Getenv("ACCRUAL_MODE"); v != "" {
		switch AccrualMode(v) {
		case AccrualPerTick, AccrualPerDay:
			cfg.AccrualMode = AccrualMode(v)
		default:
			return Config{}, fmt.Errorf("invalid ACCRUAL_MODE %q: must be %q or %q", v, AccrualPerTick, AccrualPerDay)
		}
	}

	for key, dst := range map[string]*time.Duration{
		"ACCRUAL_INTERVAL":  &cfg.AccrualInterval,
		"FLEXIBLE_MATURITY": &cfg.FlexibleMaturity,
		"STORE_TIMEOUT":     &cfg.StoreTimeout,
		"SHUTDOWN_TIMEOUT":  &cfg.ShutdownPeriod,
		"IDEMPOTENCY_TTL":   &cfg.IdempotencyTTL,
	} {
		if err := loadDuration(key, dst); err != nil {
			return Config{}, err
		}
	}

	if cfg.AccrualInterval <= 0 {
		return Config{}, fmt.Errorf("ACCRUAL_INTERVAL must be positive")
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development environment, where
// in-memory stores may substitute for Postgres and Redis.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// DailyRate derives the daily reward rate from the configured APR.
func (c Config) DailyRate() decimal.Decimal {
	return c.APR.Div(decimal.NewFromInt(365)).Div(decimal.NewFromInt(100))
}

func loadDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(seconds) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
