// Package currency converts amounts between wallet currencies.
package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	// DefaultFeeRate is charged on every conversion.
	DefaultFeeRate = "0.01"
	// PreviewValidity is how long a conversion preview should be honoured by callers.
	PreviewValidity = 15 * time.Minute
)

// ErrInvalidCurrency is returned for an unsupported currency code.
var ErrInvalidCurrency = models.ErrInvalidCurrency

// Conversion is a priced conversion preview. ValidUntil is advisory.
type Conversion struct {
	SourceCurrency models.Currency
	TargetCurrency models.Currency
	SourceAmount   decimal.Decimal
	TargetAmount   decimal.Decimal
	FeeAmount      decimal.Decimal
	Rate           decimal.Decimal
	FeeRate        decimal.Decimal
	ValidUntil     time.Time
}

// Service computes conversions and fees from a RateSource.
type Service struct {
	rates   RateSource
	feeRate decimal.Decimal
	now     func() time.Time
}

// NewService creates a conversion service charging feeRate.
func NewService(rates RateSource, feeRate decimal.Decimal) *Service {
	return &Service{rates: rates, feeRate: feeRate, now: time.Now}
}

func validatePair(source, target models.Currency) error {
	if !source.IsValid() {
		return fmt.Errorf("source %q: %w", source, ErrInvalidCurrency)
	}
	if !target.IsValid() {
		return fmt.Errorf("target %q: %w", target, ErrInvalidCurrency)
	}
	return nil
}

// GetExchangeRate returns the rate from source to target. The same currency always converts at 1.
func (s *Service) GetExchangeRate(ctx context.Context, source, target models.Currency) (decimal.Decimal, error) {
	if err := validatePair(source, target); err != nil {
		return decimal.Zero, err
	}
	if source == target {
		return decimal.NewFromInt(1), nil
	}
	rate, err := s.rates.GetExchangeRate(ctx, source, target)
	if err != nil {
		return decimal.Zero, apperrors.Internal("exchange rate lookup failed", err)
	}
	if rate.IsNegative() {
		return decimal.Zero, apperrors.Internal("exchange rate lookup failed", fmt.Errorf("negative rate %s for %s/%s", rate, source, target))
	}
	return rate, nil
}

// CalculateConversion prices moving amount from source to target:
// target = amount * rate * (1 - fee) and fee = amount * rate * fee.
// A zero amount yields zero results without consulting the rate source; its
// Rate is 1 for a same-currency pair and zero otherwise.
func (s *Service) CalculateConversion(ctx context.Context, amount decimal.Decimal, source, target models.Currency) (*Conversion, error) {
	if err := validatePair(source, target); err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, models.ErrInvalidAmount
	}

	conv := &Conversion{
		SourceCurrency: source,
		TargetCurrency: target,
		SourceAmount:   amount,
		TargetAmount:   decimal.Zero,
		FeeAmount:      decimal.Zero,
		FeeRate:        s.feeRate,
		ValidUntil:     s.now().Add(PreviewValidity),
	}
	if source == target {
		conv.Rate = decimal.NewFromInt(1)
	}
	if amount.IsZero() {
		return conv, nil
	}

	rate, err := s.GetExchangeRate(ctx, source, target)
	if err != nil {
		return nil, err
	}
	gross := amount.Mul(rate)
	conv.Rate = rate
	conv.FeeAmount = gross.Mul(s.feeRate)
	conv.TargetAmount = gross.Sub(conv.FeeAmount)
	return conv, nil
}

// GetAllRates returns every known rate.
func (s *Service) GetAllRates(ctx context.Context) (map[Pair]decimal.Decimal, error) {
	rates, err := s.rates.GetAllRates(ctx)
	if err != nil {
		return nil, apperrors.Internal("exchange rate lookup failed", err)
	}
	return rates, nil
}
