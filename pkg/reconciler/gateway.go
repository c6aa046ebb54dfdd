package reconciler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/chris/wallet-ledger/pkg/apperrors"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrInvalidCallback marks a callback whose shape or values cannot be read.
var ErrInvalidCallback = errors.New("invalid gateway callback")

// Gateway is the closed set of callback shapes the reconciler understands.
type Gateway int

const (
	GatewayUnknown Gateway = iota
	GatewayZarinpal
	GatewayZibal
	GatewaySandbox
)

func (g Gateway) String() string {
	switch g {
	case GatewayZarinpal:
		return "zarinpal"
	case GatewayZibal:
		return "zibal"
	case GatewaySandbox:
		return "sandbox"
	}
	return "unknown"
}

// Type returns the stored gateway type, or "" for GatewayUnknown.
func (g Gateway) Type() models.GatewayType {
	switch g {
	case GatewayZarinpal:
		return models.GatewayZarinpal
	case GatewayZibal:
		return models.GatewayZibal
	case GatewaySandbox:
		return models.GatewaySandbox
	}
	return ""
}

// ParseGateway reads a gateway name such as "zibal" or "ZIBAL".
func ParseGateway(s string) Gateway {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zarinpal":
		return GatewayZarinpal
	case "zibal":
		return GatewayZibal
	case "sandbox":
		return GatewaySandbox
	}
	return GatewayUnknown
}

// CanonicalCallback is a callback with the gateway-specific naming removed.
type CanonicalCallback struct {
	Gateway      Gateway
	Authority    string
	Succeeded    bool
	Canceled     bool
	RawStatus    string
	UserID       string
	Amount       *decimal.Decimal
	OrderID      string
	Currency     models.Currency
	IsIntegrated bool
}

// Classify picks the gateway for a callback. A hint naming a known gateway
// wins; otherwise the parameter names decide.
func Classify(params url.Values, hint string) Gateway {
	if g := ParseGateway(hint); g != GatewayUnknown {
		return g
	}
	switch {
	case params.Has("Authority"):
		return GatewayZarinpal
	case params.Has("trackId"):
		return GatewayZibal
	case params.Has("authority"):
		return GatewaySandbox
	}
	return GatewayUnknown
}

// Normalize classifies params and maps them onto a CanonicalCallback.
// Unrecognized shapes are rejected, never guessed.
func Normalize(params url.Values, hint string) (CanonicalCallback, error) {
	g := Classify(params, hint)
	switch g {
	case GatewayZarinpal:
		return normalizeZarinpal(params)
	case GatewayZibal:
		return normalizeZibal(params)
	case GatewaySandbox:
		return normalizeSandbox(params)
	}
	return CanonicalCallback{}, invalidCallback("unrecognized callback parameters")
}

// Zarinpal: ?Authority=...&Status=OK|NOK
func normalizeZarinpal(params url.Values) (CanonicalCallback, error) {
	status := params.Get("Status")
	cb := CanonicalCallback{
		Gateway:   GatewayZarinpal,
		Authority: params.Get("Authority"),
		Succeeded: status == "OK",
		RawStatus: status,
	}
	return fillCommon(cb, params, "Amount")
}

// Zibal: ?trackId=...&success=1|0&status=<code>. Status code 3 is a user cancel.
func normalizeZibal(params url.Values) (CanonicalCallback, error) {
	status := params.Get("status")
	cb := CanonicalCallback{
		Gateway:   GatewayZibal,
		Authority: params.Get("trackId"),
		Succeeded: params.Get("success") == "1",
		Canceled:  status == "3",
		RawStatus: params.Get("success"),
	}
	return fillCommon(cb, params, "amount")
}

func normalizeSandbox(params url.Values) (CanonicalCallback, error) {
	status := params.Get("status")
	cb := CanonicalCallback{
		Gateway:   GatewaySandbox,
		Authority: params.Get("authority"),
		Succeeded: strings.EqualFold(status, "OK") || strings.EqualFold(status, "success") || status == "1",
		RawStatus: status,
	}
	return fillCommon(cb, params, "amount")
}

func fillCommon(cb CanonicalCallback, params url.Values, amountKey string) (CanonicalCallback, error) {
	if cb.Authority == "" {
		return CanonicalCallback{}, invalidCallback("missing authority for %s callback", cb.Gateway)
	}
	if !cb.Succeeded && !cb.Canceled {
		switch strings.ToUpper(cb.RawStatus) {
		case "CANCEL", "CANCELED", "CANCELLED":
			cb.Canceled = true
		}
	}
	cb.UserID = params.Get("userId")
	cb.OrderID = params.Get("orderId")
	cb.IsIntegrated = strings.EqualFold(params.Get("integrated"), "true")

	if raw := params.Get(amountKey); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return CanonicalCallback{}, invalidCallback("amount %q is not a number", raw)
		}
		cb.Amount = &amount
	}
	if raw := params.Get("currency"); raw != "" {
		c, err := models.ParseCurrency(raw)
		if err != nil {
			return CanonicalCallback{}, invalidCallback("unsupported currency %q", raw)
		}
		cb.Currency = c
	}
	return cb, nil
}

func invalidCallback(format string, args ...any) error {
	return &apperrors.Error{
		Kind:    apperrors.KindBadRequest,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrInvalidCallback,
	}
}
