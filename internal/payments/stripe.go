// Package payments holds fare funds against a rider's card: a manual-capture
// hold at booking time, captured when the trip dispatches and released if
// the booking is cancelled. Payment failures never block a booking or a
// dispatch; the flow treats the hold as advisory.
package payments

import (
	"context"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// FareHolder is the payment surface the taxi mirage and dispatcher use.
type FareHolder interface {
	HoldFare(ctx context.Context, amountCents int64, userID string) (string, error)
	CaptureFare(ctx context.Context, ref string) error
	ReleaseFare(ctx context.Context, ref string) error
}

// StripeClient implements FareHolder with manual-capture PaymentIntents.
type StripeClient struct {
	Currency string
}

// NewStripeClient initializes stripe-go with the STRIPE_API_KEY env var.
func NewStripeClient(currency string) *StripeClient {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	if currency == "" {
		currency = "zar"
	}
	return &StripeClient{Currency: currency}
}

func (s *StripeClient) HoldFare(ctx context.Context, amountCents int64, userID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(s.Currency),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	params.AddMetadata("wa_user", userID)
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (s *StripeClient) CaptureFare(ctx context.Context, ref string) error {
	_, err := paymentintent.Capture(ref, nil)
	return err
}

func (s *StripeClient) ReleaseFare(ctx context.Context, ref string) error {
	_, err := paymentintent.Cancel(ref, nil)
	return err
}
