package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type LedgerConfig struct {
	DefaultCurrency        string
	RevenueAccountID       string
	DefaultAgentCommission decimal.Decimal
	RateCacheTTL           time.Duration
	RateStaleGrace         time.Duration
	OTPLength              int
	OTPTimeout             time.Duration
	MaxOTPPerUser          int
	OTPRateLimitWindow     time.Duration
	OTPHashIterations      int
	VotePrice              decimal.Decimal
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		DefaultCurrency:        getEnv("LEDGER_DEFAULT_CURRENCY", "NGN"),
		RevenueAccountID:       getEnv("PLATFORM_REVENUE_ACCOUNT", "SYS-REVENUE"),
		DefaultAgentCommission: getEnvAsDecimal("AGENT_DEFAULT_COMMISSION_PCT", decimal.RequireFromString("1.5")),
		RateCacheTTL:           getEnvAsDuration("RATE_CACHE_TTL", 5*time.Minute),
		RateStaleGrace:         getEnvAsDuration("RATE_STALE_GRACE", 24*time.Hour),
		OTPLength:              getEnvAsInt("OTP_LENGTH", 6),
		OTPTimeout:             getEnvAsDuration("OTP_TIMEOUT", 5*time.Minute),
		MaxOTPPerUser:          getEnvAsInt("OTP_MAX_PER_USER", 5),
		OTPRateLimitWindow:     getEnvAsDuration("OTP_RATE_LIMIT_WINDOW", 1*time.Hour),
		OTPHashIterations:      getEnvAsInt("OTP_HASH_ITERATIONS", 10000),
		VotePrice:              getEnvAsDecimal("VOTE_PRICE", decimal.NewFromInt(100)),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if dec, err := decimal.NewFromString(val); err == nil {
			return dec
		}
	}
	return defaultVal
}
