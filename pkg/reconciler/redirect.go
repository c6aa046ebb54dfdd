package reconciler

import (
	"net/url"

	"github.com/chris/wallet-ledger/pkg/models"
)

const defaultFailureMessage = "payment was not completed"

// RedirectFor returns the page a payer lands on for the payment's status.
// It depends only on the stored payment, so replays get the same URL.
func (r *Reconciler) RedirectFor(p *models.PaymentTransaction) string {
	q := url.Values{}
	q.Set("authority", p.Authority)
	if p.OrderId != nil {
		q.Set("orderId", *p.OrderId)
	}
	q.Set("amount", p.Amount.String())

	if p.Status == models.PaymentSuccessful || p.Status == models.PaymentRefunded {
		return withQuery(r.redirects.Success, q)
	}
	msg := defaultFailureMessage
	if p.FailureReason != nil {
		msg = *p.FailureReason
	}
	q.Set("message", msg)
	return withQuery(r.redirects.Failure, q)
}

// FailureRedirect is the failure page for a callback that could not be read.
func (r *Reconciler) FailureRedirect(message string) string {
	q := url.Values{}
	q.Set("message", message)
	return withQuery(r.redirects.Failure, q)
}

func withQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + q.Encode()
	}
	existing := u.Query()
	for k, vs := range q {
		existing[k] = vs
	}
	u.RawQuery = existing.Encode()
	return u.String()
}
