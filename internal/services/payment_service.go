package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/teamcredits/internal/models"
	"github.com/charlesng35/teamcredits/internal/payments"
	apperrors "github.com/charlesng35/teamcredits/pkg/errors"
	"github.com/charlesng35/teamcredits/pkg/logger"
	"github.com/charlesng35/teamcredits/pkg/metrics"
	"github.com/charlesng35/teamcredits/pkg/money"
)

const defaultPaymentTimeout = 10 * time.Second

// Webhook outcomes reported back to the payment provider.
const (
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
)

// PurchaseResult is a committed pending grant together with its hosted checkout.
type PurchaseResult struct {
	Grant       *models.CreditGrant
	CheckoutURL string
}

// WebhookResult describes how a verified provider event was handled.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Outcome   string `json:"outcome"`
	Reference string `json:"reference,omitempty"`
}

// PaymentOption customises PaymentService behaviour.
type PaymentOption func(*PaymentService)

// WithPaymentTimeout bounds each call to the payment provider.
func WithPaymentTimeout(d time.Duration) PaymentOption {
	return func(s *PaymentService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPaymentLogger overrides the service logger.
func WithPaymentLogger(log *zap.Logger) PaymentOption {
	return func(s *PaymentService) {
		if log != nil {
			s.log = log
		}
	}
}

// PaymentService ties credit purchases to the external payment provider.
type PaymentService struct {
	credits  *CreditService
	provider payments.Provider
	timeout  time.Duration
	log      *zap.Logger
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(credits *CreditService, provider payments.Provider, opts ...PaymentOption) (*PaymentService, error) {
	if credits == nil {
		return nil, errors.New("payment service: credit service is required")
	}
	if provider == nil {
		return nil, errors.New("payment service: payment provider is required")
	}

	svc := &PaymentService{
		credits:  credits,
		provider: provider,
		timeout:  defaultPaymentTimeout,
		log:      logger.WithModule("payments"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// BuyCredits commits a pending grant and opens a hosted checkout for it. The
// grant is stored before the provider is contacted.
func (s *PaymentService) BuyCredits(ctx context.Context, org *models.Organization, memberID string, amount int64) (*PurchaseResult, error) {
	ctx = ensureContext(ctx)

	grant, err := s.credits.InitiatePurchase(ctx, org, memberID, amount)
	if err != nil {
		return nil, err
	}

	checkout, err := s.CreateCheckout(ctx, grant, org.ManagerEmail)
	if err != nil {
		metrics.CreditPurchases.WithLabelValues("checkout_failed").Inc()
		return nil, err
	}

	if err := s.credits.AttachCheckout(ctx, grant.PurchaseReference, checkout.SessionID, checkout.URL); err != nil {
		s.log.Warn("unable to record checkout session",
			zap.String("reference", grant.PurchaseReference),
			zap.Error(err))
	} else {
		grant.CheckoutSessionID = checkout.SessionID
		grant.CheckoutURL = checkout.URL
	}
	metrics.CreditPurchases.WithLabelValues("initiated").Inc()

	return &PurchaseResult{Grant: grant, CheckoutURL: checkout.URL}, nil
}

// CreateCheckout asks the provider for a hosted checkout charging the grant's
// total. Failures are not retried.
func (s *PaymentService) CreateCheckout(ctx context.Context, grant *models.CreditGrant, customerEmail string) (*payments.Checkout, error) {
	ctx = ensureContext(ctx)
	if grant == nil {
		return nil, errors.New("payment service: grant is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	checkout, err := s.provider.CreateCheckout(callCtx, payments.CheckoutRequest{
		Reference:     grant.PurchaseReference,
		Quantity:      grant.Amount,
		UnitPrice:     money.New(grant.UnitPrice, grant.Currency),
		CustomerEmail: customerEmail,
		Metadata: map[string]string{
			"organization_id": grant.OrganizationID,
			"team_member_id":  grant.TeamMemberID,
		},
	})
	if err != nil {
		s.log.Error("checkout creation failed",
			zap.String("reference", grant.PurchaseReference),
			zap.Error(err))
		return nil, ErrPaymentProviderUnavailable.WithInternal(err)
	}
	return checkout, nil
}

// HandleConfirmationEvent verifies and applies a provider notification.
// Events other than completed checkouts, and events for references this
// service never issued, are acknowledged as ignored.
func (s *PaymentService) HandleConfirmationEvent(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	ctx = ensureContext(ctx)

	event, err := s.provider.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
			s.log.Warn("discarding webhook with invalid signature", zap.Error(err))
			return nil, ErrInvalidSignature.WithInternal(err)
		}
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		s.log.Warn("discarding malformed webhook", zap.Error(err))
		return nil, apperrors.NewBadRequest("Malformed event payload").WithInternal(err)
	}

	result := &WebhookResult{EventID: event.ID, EventType: event.Type, Outcome: WebhookIgnored}
	if !event.Completed || event.Reference == "" {
		metrics.WebhookEvents.WithLabelValues(WebhookIgnored).Inc()
		return result, nil
	}
	result.Reference = event.Reference

	confirmed, err := s.credits.ConfirmPurchase(ctx, event.Reference)
	switch {
	case errors.Is(err, ErrUnknownReference):
		metrics.WebhookEvents.WithLabelValues(WebhookIgnored).Inc()
		s.log.Warn("webhook for unknown purchase reference",
			zap.String("event_id", event.ID),
			zap.String("reference", event.Reference))
		return result, nil
	case err != nil:
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		return nil, err
	}

	if confirmed.Applied {
		result.Outcome = WebhookApplied
	} else {
		result.Outcome = WebhookDuplicate
	}
	metrics.WebhookEvents.WithLabelValues(result.Outcome).Inc()
	return result, nil
}
