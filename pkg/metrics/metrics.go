package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IdentityVerifications records bearer token checks by result (success|failure|cached).
	IdentityVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamcredits_identity_verifications_total",
			Help: "Total number of identity verifications",
		},
		[]string{"result"},
	)

	// LoginAttempts records password sign-ins by result (success|failure).
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamcredits_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// Invites counts team member invitations by result (created|duplicate|email_failed).
	Invites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamcredits_invites_total",
			Help: "Total number of team member invitations",
		},
		[]string{"result"},
	)

	// Notifications counts manager notifications by action and result.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamcredits_notifications_total",
			Help: "Total number of notification emails",
		},
		[]string{"action", "result"},
	)

	// CreditPurchases counts initiated purchases by result (initiated|checkout_failed).
	CreditPurchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamcredits_credit_purchases_total",
			Help: "Total number of credit purchases initiated",
		},
		[]string{"result"},
	)

	// PurchaseConfirmations counts confirmations by outcome (applied|duplicate|unknown).
	PurchaseConfirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamcredits_purchase_confirmations_total",
			Help: "Total number of purchase confirmations",
		},
		[]string{"outcome"},
	)

	// CreditInvalidations counts invalidation requests by result (invalidated|rejected).
	CreditInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamcredits_credit_invalidations_total",
			Help: "Total number of credit invalidations",
		},
		[]string{"result"},
	)

	// WebhookEvents counts payment webhook deliveries by outcome (applied|ignored|invalid_signature|error).
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamcredits_webhook_events_total",
			Help: "Total number of payment webhook events",
		},
		[]string{"outcome"},
	)

	// StalePendingGrants reports pending grants older than the configured expiry.
	StalePendingGrants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "teamcredits_stale_pending_grants",
			Help: "Number of pending credit grants older than the pending expiry",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teamcredits_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
