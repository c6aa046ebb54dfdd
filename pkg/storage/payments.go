package storage

import (
	"context"

	"github.com/chris/wallet-ledger/pkg/models"
)

// PaymentReader defines the interface for reading gateway payments.
type PaymentReader interface {
	// GetPaymentByAuthority retrieves the payment for a gateway authority or tracking ID.
	GetPaymentByAuthority(ctx context.Context, authority string) (*models.PaymentTransaction, error)

	// GetPayment retrieves a payment by its ID.
	GetPayment(ctx context.Context, paymentID string) (*models.PaymentTransaction, error)
}
