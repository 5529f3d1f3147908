package app

import (
	"strings"

	"github.com/charlesng35/teamcredits/internal/models"
	"github.com/charlesng35/teamcredits/internal/payments"
	"github.com/charlesng35/teamcredits/internal/services"
)

// StripeConfig converts PaymentsConfig into Stripe provider parameters.
func (c PaymentsConfig) StripeConfig() payments.StripeConfig {
	return payments.StripeConfig{
		SecretKey:     strings.TrimSpace(c.Stripe.SecretKey),
		WebhookSecret: strings.TrimSpace(c.Stripe.WebhookSecret),
		SuccessURL:    strings.TrimSpace(c.Stripe.SuccessURL),
		CancelURL:     strings.TrimSpace(c.Stripe.CancelURL),
		ProductName:   strings.TrimSpace(c.Stripe.ProductName),
		APIBase:       strings.TrimRight(strings.TrimSpace(c.Stripe.APIBase), "/"),
	}
}

// EligibleStatuses parses the configured purchase eligibility set. Unknown
// values are skipped; Validate reports them.
func (c CreditsConfig) EligibleStatuses() []models.TeamMemberStatus {
	var statuses []models.TeamMemberStatus
	for _, raw := range c.PurchaseEligibleStatuses {
		if status, ok := models.ParseTeamMemberStatus(raw); ok {
			statuses = append(statuses, status)
		}
	}
	if len(statuses) == 0 {
		return services.DefaultEligibleStatuses
	}
	return statuses
}

// TeamLinks converts TeamConfig into the team service link settings.
func (c TeamConfig) TeamLinks() services.TeamLinks {
	return services.TeamLinks{
		GenerationBaseURL: strings.TrimSpace(c.GenerationBaseURL),
		ResultsBaseURL:    strings.TrimSpace(c.ResultsBaseURL),
	}
}
