// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Ledger   LedgerConfig
	Payments PaymentsConfig
	Jobs     JobsConfig
	LogLevel slog.Level
}

type ServerConfig struct {
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
}

type StorageConfig struct {
	Backend           string
	WalletsTable      string
	AccountsTable     string
	TransactionsTable string
	PaymentsTable     string
	OutboxTable       string
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	RateCacheTTL time.Duration
}

type QueueConfig struct {
	EventsQueueURL string
}

type LedgerConfig struct {
	HomeCurrency       models.Currency
	ConversionFeeRate  decimal.Decimal
	DefaultCreditLimit decimal.Decimal
	CommitAttempts     int
	RefundWindow       time.Duration
}

type PaymentsConfig struct {
	SuccessURL string
	FailureURL string
}

type JobsConfig struct {
	SweepInterval time.Duration
	RelayInterval time.Duration
}

// Load builds a Config from the environment. Unset or unparsable values
// fall back to defaults; only settings without a usable default are errors.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("HTTP_PORT", "8080"),
			ReadTimeout:        getDurationEnv("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:       getDurationEnv("HTTP_WRITE_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Storage: StorageConfig{
			Backend:           strings.ToLower(getEnv("STORAGE_BACKEND", BackendDynamoDB)),
			WalletsTable:      getEnv("DYNAMODB_WALLETS_TABLE_NAME", ""),
			AccountsTable:     getEnv("DYNAMODB_ACCOUNTS_TABLE_NAME", ""),
			TransactionsTable: getEnv("DYNAMODB_TRANSACTIONS_TABLE_NAME", ""),
			PaymentsTable:     getEnv("DYNAMODB_PAYMENTS_TABLE_NAME", ""),
			OutboxTable:       getEnv("DYNAMODB_OUTBOX_TABLE_NAME", ""),
		},
		Redis: RedisConfig{
			Addr:         normalizeRedisAddr(getEnv("REDIS_ADDR", "")),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			RateCacheTTL: getDurationEnv("RATE_CACHE_TTL", time.Minute),
		},
		Queue: QueueConfig{
			EventsQueueURL: getEnv("SQS_EVENTS_QUEUE_URL", ""),
		},
		Ledger: LedgerConfig{
			ConversionFeeRate:  getDecimalEnv("CONVERSION_FEE_RATE", decimal.RequireFromString("0.01")),
			DefaultCreditLimit: getDecimalEnv("DEFAULT_CREDIT_LIMIT", decimal.Zero),
			CommitAttempts:     getIntEnv("COMMIT_RETRY_ATTEMPTS", 3),
			RefundWindow:       getDurationEnv("REFUND_WINDOW", 30*24*time.Hour),
		},
		Payments: PaymentsConfig{
			SuccessURL: getEnv("PAYMENT_SUCCESS_URL", "http://localhost:3000/payment/success"),
			FailureURL: getEnv("PAYMENT_FAILURE_URL", "http://localhost:3000/payment/failure"),
		},
		Jobs: JobsConfig{
			SweepInterval: getDurationEnv("SWEEP_INTERVAL", time.Hour),
			RelayInterval: getDurationEnv("RELAY_INTERVAL", 5*time.Second),
		},
		LogLevel: getLevelEnv("LOG_LEVEL", slog.LevelInfo),
	}

	home, err := models.ParseCurrency(getEnv("HOME_CURRENCY", string(models.HomeCurrency)))
	if err != nil {
		return nil, fmt.Errorf("HOME_CURRENCY: %w", err)
	}
	cfg.Ledger.HomeCurrency = home

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendDynamoDB:
		tables := map[string]string{
			"DYNAMODB_WALLETS_TABLE_NAME":      c.Storage.WalletsTable,
			"DYNAMODB_ACCOUNTS_TABLE_NAME":     c.Storage.AccountsTable,
			"DYNAMODB_TRANSACTIONS_TABLE_NAME": c.Storage.TransactionsTable,
			"DYNAMODB_PAYMENTS_TABLE_NAME":     c.Storage.PaymentsTable,
			"DYNAMODB_OUTBOX_TABLE_NAME":       c.Storage.OutboxTable,
		}
		var missing []string
		for key, v := range tables {
			if v == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("one or more DynamoDB table name environment variables are not set: %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Ledger.ConversionFeeRate.IsNegative() || c.Ledger.ConversionFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("CONVERSION_FEE_RATE must be in [0, 1), got %s", c.Ledger.ConversionFeeRate)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getLevelEnv(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return defaultValue
	}
	return level
}

// normalizeRedisAddr strips a redis:// scheme so the value can be used as an address.
func normalizeRedisAddr(addr string) string {
	addr = strings.TrimPrefix(addr, "redis://")
	return strings.TrimSuffix(addr, "/")
}
