package currency

import (
	"context"
	"errors"
	"fmt"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrRateUnavailable is returned when no rate is known for a currency pair.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Pair is an ordered currency pair.
type Pair struct {
	Source models.Currency
	Target models.Currency
}

func (p Pair) String() string { return string(p.Source) + "/" + string(p.Target) }

// RateSource provides exchange rates. Rates are never negative.
type RateSource interface {
	GetExchangeRate(ctx context.Context, source, target models.Currency) (decimal.Decimal, error)
	GetAllRates(ctx context.Context) (map[Pair]decimal.Decimal, error)
}

// inversePrecision is the number of decimal places kept when deriving an inverse rate.
const inversePrecision = 12

// StaticRateSource serves rates from a fixed table. Missing pairs are derived
// from their inverse, or crossed through the home currency.
type StaticRateSource struct {
	rates map[Pair]decimal.Decimal
}

// NewStaticRateSource creates a StaticRateSource from a rate table.
func NewStaticRateSource(rates map[Pair]decimal.Decimal) *StaticRateSource {
	cp := make(map[Pair]decimal.Decimal, len(rates))
	for k, v := range rates {
		cp[k] = v
	}
	return &StaticRateSource{rates: cp}
}

// DefaultRates is a table of home-currency rates for local runs.
func DefaultRates() map[Pair]decimal.Decimal {
	return map[Pair]decimal.Decimal{
		{Source: models.USD, Target: models.IRR}: decimal.NewFromInt(600000),
		{Source: models.EUR, Target: models.IRR}: decimal.NewFromInt(650000),
		{Source: models.GBP, Target: models.IRR}: decimal.NewFromInt(760000),
		{Source: models.AED, Target: models.IRR}: decimal.NewFromInt(163000),
		{Source: models.TRY, Target: models.IRR}: decimal.NewFromInt(17500),
	}
}

var _ RateSource = (*StaticRateSource)(nil)

func (s *StaticRateSource) GetExchangeRate(ctx context.Context, source, target models.Currency) (decimal.Decimal, error) {
	if source == target {
		return decimal.NewFromInt(1), nil
	}
	if r, ok := s.lookup(source, target); ok {
		return r, nil
	}
	toHome, ok1 := s.lookup(source, models.HomeCurrency)
	fromHome, ok2 := s.lookup(models.HomeCurrency, target)
	if ok1 && ok2 {
		return toHome.Mul(fromHome).Round(inversePrecision), nil
	}
	return decimal.Zero, fmt.Errorf("%s: %w", Pair{source, target}, ErrRateUnavailable)
}

func (s *StaticRateSource) lookup(source, target models.Currency) (decimal.Decimal, bool) {
	if source == target {
		return decimal.NewFromInt(1), true
	}
	if r, ok := s.rates[Pair{source, target}]; ok {
		return r, true
	}
	if r, ok := s.rates[Pair{target, source}]; ok && r.IsPositive() {
		return decimal.NewFromInt(1).DivRound(r, inversePrecision), true
	}
	return decimal.Zero, false
}

func (s *StaticRateSource) GetAllRates(ctx context.Context) (map[Pair]decimal.Decimal, error) {
	all := make(map[Pair]decimal.Decimal)
	for _, src := range models.SupportedCurrencies() {
		for _, dst := range models.SupportedCurrencies() {
			if src == dst {
				continue
			}
			if r, err := s.GetExchangeRate(ctx, src, dst); err == nil {
				all[Pair{src, dst}] = r
			}
		}
	}
	return all, nil
}
