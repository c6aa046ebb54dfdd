package models

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 currency code supported by the wallet.
type Currency string

const (
	IRR Currency = "IRR"
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	AED Currency = "AED"
	TRY Currency = "TRY"
)

// HomeCurrency is the currency of the default account created with every wallet.
const HomeCurrency = IRR

var supportedCurrencies = map[Currency]struct{}{
	IRR: {}, USD: {}, EUR: {}, GBP: {}, AED: {}, TRY: {},
}

// IsValid reports whether c is a supported currency code.
func (c Currency) IsValid() bool {
	_, ok := supportedCurrencies[c]
	return ok
}

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

// SupportedCurrencies returns every supported code.
func SupportedCurrencies() []Currency {
	return []Currency{IRR, USD, EUR, GBP, AED, TRY}
}
