package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "memory")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
		assert.Equal(t, models.IRR, cfg.Ledger.HomeCurrency)
		assert.Equal(t, "0.01", cfg.Ledger.ConversionFeeRate.String())
		assert.Equal(t, 3, cfg.Ledger.CommitAttempts)
		assert.Equal(t, 30*24*time.Hour, cfg.Ledger.RefundWindow)
		assert.Equal(t, time.Hour, cfg.Jobs.SweepInterval)
		assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
		assert.Empty(t, cfg.Redis.Addr)
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "DynamoDB")
		t.Setenv("DYNAMODB_WALLETS_TABLE_NAME", "wallets")
		t.Setenv("DYNAMODB_ACCOUNTS_TABLE_NAME", "accounts")
		t.Setenv("DYNAMODB_TRANSACTIONS_TABLE_NAME", "transactions")
		t.Setenv("DYNAMODB_PAYMENTS_TABLE_NAME", "payments")
		t.Setenv("DYNAMODB_OUTBOX_TABLE_NAME", "outbox")
		t.Setenv("HTTP_PORT", "9090")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("HOME_CURRENCY", "usd")
		t.Setenv("CONVERSION_FEE_RATE", "0.025")
		t.Setenv("DEFAULT_CREDIT_LIMIT", "5000")
		t.Setenv("REDIS_ADDR", "redis://cache:6379")
		t.Setenv("REDIS_DB", "2")
		t.Setenv("SWEEP_INTERVAL", "15m")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, BackendDynamoDB, cfg.Storage.Backend)
		assert.Equal(t, "outbox", cfg.Storage.OutboxTable)
		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
		assert.Equal(t, models.USD, cfg.Ledger.HomeCurrency)
		assert.Equal(t, "0.025", cfg.Ledger.ConversionFeeRate.String())
		assert.Equal(t, "5000", cfg.Ledger.DefaultCreditLimit.String())
		assert.Equal(t, "cache:6379", cfg.Redis.Addr)
		assert.Equal(t, 2, cfg.Redis.DB)
		assert.Equal(t, 15*time.Minute, cfg.Jobs.SweepInterval)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	})

	t.Run("Unparsable Values Fall Back", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "memory")
		t.Setenv("COMMIT_RETRY_ATTEMPTS", "many")
		t.Setenv("RELAY_INTERVAL", "soon")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Ledger.CommitAttempts)
		assert.Equal(t, 5*time.Second, cfg.Jobs.RelayInterval)
	})

	t.Run("Missing Tables", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "dynamodb")
		t.Setenv("DYNAMODB_WALLETS_TABLE_NAME", "wallets")

		_, err := Load()

		assert.ErrorContains(t, err, "DYNAMODB_ACCOUNTS_TABLE_NAME")
	})

	t.Run("Invalid Home Currency", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "memory")
		t.Setenv("HOME_CURRENCY", "XYZ")

		_, err := Load()

		assert.ErrorContains(t, err, "HOME_CURRENCY")
	})

	t.Run("Invalid Fee Rate", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "memory")
		t.Setenv("CONVERSION_FEE_RATE", "1.5")

		_, err := Load()

		assert.ErrorContains(t, err, "CONVERSION_FEE_RATE")
	})

	t.Run("Unknown Backend", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "postgres")

		_, err := Load()

		assert.Error(t, err)
	})
}
