package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Cache is the subset of the Redis client used for rate caching.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

const allRatesKey = "fx:rates:all"

// CachedRateSource is a read-through Redis cache in front of another RateSource.
// Cache failures are logged and the underlying source is used directly.
type CachedRateSource struct {
	source RateSource
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRateSource wraps source with a Redis cache.
func NewCachedRateSource(source RateSource, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedRateSource {
	return &CachedRateSource{source: source, cache: cache, ttl: ttl, logger: logger}
}

var _ RateSource = (*CachedRateSource)(nil)

func rateKey(source, target models.Currency) string {
	return fmt.Sprintf("fx:rate:%s:%s", source, target)
}

func (c *CachedRateSource) GetExchangeRate(ctx context.Context, source, target models.Currency) (decimal.Decimal, error) {
	if source == target {
		return decimal.NewFromInt(1), nil
	}
	key := rateKey(source, target)

	cached, err := c.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		if rate, perr := decimal.NewFromString(cached); perr == nil {
			return rate, nil
		}
		c.logger.Warn("discarding malformed cached rate", "key", key, "value", cached)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("rate cache read failed", "key", key, "error", err)
	}

	rate, err := c.source.GetExchangeRate(ctx, source, target)
	if err != nil {
		return decimal.Zero, err
	}

	if err := c.cache.Set(ctx, key, rate.String(), c.ttl).Err(); err != nil {
		c.logger.Warn("rate cache write failed", "key", key, "error", err)
	}
	return rate, nil
}

func (c *CachedRateSource) GetAllRates(ctx context.Context) (map[Pair]decimal.Decimal, error) {
	if raw, err := c.cache.Get(ctx, allRatesKey).Bytes(); err == nil {
		if rates, perr := decodeRates(raw); perr == nil {
			return rates, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("rate cache read failed", "key", allRatesKey, "error", err)
	}

	rates, err := c.source.GetAllRates(ctx)
	if err != nil {
		return nil, err
	}

	if body, err := encodeRates(rates); err == nil {
		if err := c.cache.Set(ctx, allRatesKey, body, c.ttl).Err(); err != nil {
			c.logger.Warn("rate cache write failed", "key", allRatesKey, "error", err)
		}
	}
	return rates, nil
}

func encodeRates(rates map[Pair]decimal.Decimal) ([]byte, error) {
	flat := make(map[string]string, len(rates))
	for p, r := range rates {
		flat[p.String()] = r.String()
	}
	return json.Marshal(flat)
}

func decodeRates(raw []byte) (map[Pair]decimal.Decimal, error) {
	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	rates := make(map[Pair]decimal.Decimal, len(flat))
	for k, v := range flat {
		src, dst, ok := strings.Cut(k, "/")
		if !ok {
			return nil, fmt.Errorf("bad rate key %q", k)
		}
		r, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		rates[Pair{models.Currency(src), models.Currency(dst)}] = r
	}
	return rates, nil
}
