// Package payments adapts external payment processors to checkout creation and
// signed confirmation events.
package payments

import (
	"context"
	"errors"

	"github.com/charlesng35/teamcredits/pkg/money"
)

var (
	// ErrInvalidSignature reports an event whose signature does not verify.
	ErrInvalidSignature = errors.New("payments: invalid event signature")
	// ErrProviderUnavailable reports a transport or provider failure.
	ErrProviderUnavailable = errors.New("payments: provider unavailable")
)

// CheckoutRequest describes a hosted checkout for a credit purchase.
type CheckoutRequest struct {
	Reference     string
	Quantity      int64
	UnitPrice     money.Money
	CustomerEmail string
	Metadata      map[string]string
}

// Checkout is the provider's hosted checkout session.
type Checkout struct {
	SessionID string
	URL       string
}

// Event is a verified provider notification. Reference is only set for
// completed, paid checkouts.
type Event struct {
	ID        string
	Type      string
	SessionID string
	Reference string
	Completed bool
}

// Provider is the payment processor capability.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	ParseEvent(payload []byte, signature string) (*Event, error)
}
