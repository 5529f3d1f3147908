package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	stripeclient "github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	eventCheckoutCompleted = "checkout.session.completed"
	referenceMetadataKey   = "purchase_reference"
)

// StripeConfig configures the Stripe Checkout adapter.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	ProductName   string
	// APIBase overrides https://api.stripe.com, e.g. for stripe-mock.
	APIBase    string
	HTTPClient *http.Client
}

// StripeProvider creates Checkout Sessions and verifies webhook events.
type StripeProvider struct {
	api           *stripeclient.API
	webhookSecret string
	successURL    string
	cancelURL     string
	productName   string
}

// NewStripeProvider constructs a Stripe adapter. Network retries are disabled
// so a failed checkout is reported to the caller instead of retried.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.HTTPClient != nil {
		backendCfg.HTTPClient = cfg.HTTPClient
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"); base != "" {
		backendCfg.URL = stripe.String(base)
	}
	api := &stripeclient.API{}
	api.Init(cfg.SecretKey, stripe.NewBackendsWithConfig(backendCfg))

	productName := strings.TrimSpace(cfg.ProductName)
	if productName == "" {
		productName = "Credits Purchase"
	}

	return &StripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		productName:   productName,
	}, nil
}

// CreateCheckout opens a payment-mode Checkout Session charging Quantity units
// at UnitPrice. The purchase reference travels as client_reference_id and metadata.
func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if req.Reference == "" {
		return nil, errors.New("stripe: purchase reference is required")
	}
	if req.Quantity < 1 || !req.UnitPrice.IsPositive() {
		return nil, errors.New("stripe: quantity and unit price must be positive")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.successURL),
		CancelURL:         stripe.String(p.cancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.UnitPrice.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.productName),
					},
					UnitAmount: stripe.Int64(req.UnitPrice.Amount),
				},
				Quantity: stripe.Int64(req.Quantity),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	params.AddMetadata(referenceMetadataKey, req.Reference)
	params.Context = ctx

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if session.URL == "" {
		return nil, fmt.Errorf("%w: checkout session %s has no url", ErrProviderUnavailable, session.ID)
	}

	return &Checkout{SessionID: session.ID, URL: session.URL}, nil
}

// ParseEvent verifies the Stripe-Signature header and decodes the event.
func (p *StripeProvider) ParseEvent(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := &Event{ID: event.ID, Type: string(event.Type)}
	if result.Type != eventCheckoutCompleted || event.Data == nil {
		return result, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	result.SessionID = session.ID
	result.Reference = session.ClientReferenceID
	if result.Reference == "" {
		result.Reference = session.Metadata[referenceMetadataKey]
	}
	result.Completed = session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		session.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired

	return result, nil
}
