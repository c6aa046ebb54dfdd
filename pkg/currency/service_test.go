package currency_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/currency"
	"github.com/chris/wallet-ledger/pkg/currency/mocks"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCalculateConversion(t *testing.T) {
	feeRate := decimal.RequireFromString(currency.DefaultFeeRate)

	t.Run("Success", func(t *testing.T) {
		rates := new(mocks.RateSource)
		rates.On("GetExchangeRate", mock.Anything, models.USD, models.IRR).Return(decimal.NewFromInt(600000), nil)
		svc := currency.NewService(rates, feeRate)

		before := time.Now()
		conv, err := svc.CalculateConversion(context.Background(), decimal.NewFromInt(10), models.USD, models.IRR)

		require.NoError(t, err)
		assert.True(t, conv.TargetAmount.Equal(decimal.NewFromInt(5940000)), conv.TargetAmount.String())
		assert.True(t, conv.FeeAmount.Equal(decimal.NewFromInt(60000)), conv.FeeAmount.String())
		assert.True(t, conv.Rate.Equal(decimal.NewFromInt(600000)))
		assert.WithinDuration(t, before.Add(currency.PreviewValidity), conv.ValidUntil, time.Second)
		rates.AssertExpectations(t)
	})

	t.Run("Same Currency", func(t *testing.T) {
		rates := new(mocks.RateSource)
		svc := currency.NewService(rates, feeRate)

		conv, err := svc.CalculateConversion(context.Background(), decimal.NewFromInt(100), models.IRR, models.IRR)

		require.NoError(t, err)
		assert.True(t, conv.Rate.Equal(decimal.NewFromInt(1)))
		assert.True(t, conv.TargetAmount.Equal(decimal.NewFromInt(99)))
		rates.AssertNotCalled(t, "GetExchangeRate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Zero Amount", func(t *testing.T) {
		rates := new(mocks.RateSource)
		svc := currency.NewService(rates, feeRate)

		conv, err := svc.CalculateConversion(context.Background(), decimal.Zero, models.USD, models.EUR)

		require.NoError(t, err)
		assert.True(t, conv.TargetAmount.IsZero())
		assert.True(t, conv.FeeAmount.IsZero())
		assert.True(t, conv.Rate.IsZero())
		rates.AssertNotCalled(t, "GetExchangeRate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Zero Amount Same Currency", func(t *testing.T) {
		rates := new(mocks.RateSource)
		svc := currency.NewService(rates, feeRate)

		conv, err := svc.CalculateConversion(context.Background(), decimal.Zero, models.IRR, models.IRR)

		require.NoError(t, err)
		assert.True(t, conv.Rate.Equal(decimal.NewFromInt(1)))
		assert.True(t, conv.TargetAmount.IsZero())
		rates.AssertNotCalled(t, "GetExchangeRate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Invalid Currency", func(t *testing.T) {
		svc := currency.NewService(new(mocks.RateSource), feeRate)

		_, err := svc.CalculateConversion(context.Background(), decimal.NewFromInt(1), models.Currency("XYZ"), models.IRR)

		assert.ErrorIs(t, err, currency.ErrInvalidCurrency)
		assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
	})

	t.Run("Rate Source Error", func(t *testing.T) {
		rates := new(mocks.RateSource)
		rates.On("GetExchangeRate", mock.Anything, models.USD, models.EUR).Return(decimal.Zero, errors.New("upstream down"))
		svc := currency.NewService(rates, feeRate)

		_, err := svc.CalculateConversion(context.Background(), decimal.NewFromInt(1), models.USD, models.EUR)

		assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	})
}

func TestStaticRateSource(t *testing.T) {
	src := currency.NewStaticRateSource(currency.DefaultRates())
	ctx := context.Background()

	direct, err := src.GetExchangeRate(ctx, models.USD, models.IRR)
	require.NoError(t, err)
	assert.True(t, direct.Equal(decimal.NewFromInt(600000)))

	inverse, err := src.GetExchangeRate(ctx, models.IRR, models.USD)
	require.NoError(t, err)
	assert.True(t, inverse.Mul(direct).Round(6).Equal(decimal.NewFromInt(1)))

	cross, err := src.GetExchangeRate(ctx, models.EUR, models.USD)
	require.NoError(t, err)
	assert.True(t, cross.GreaterThan(decimal.NewFromInt(1)))

	empty := currency.NewStaticRateSource(nil)
	_, err = empty.GetExchangeRate(ctx, models.USD, models.EUR)
	assert.ErrorIs(t, err, currency.ErrRateUnavailable)

	all, err := src.GetAllRates(ctx)
	require.NoError(t, err)
	assert.Contains(t, all, currency.Pair{Source: models.GBP, Target: models.AED})
}
