package app

import (
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/multierr"

	"github.com/charlesng35/teamcredits/pkg/money"
)

var knownEnvironments = map[string]struct{}{
	EnvDevelopment: {},
	EnvTesting:     {},
	EnvQA:          {},
	EnvStaging:     {},
	EnvProduction:  {},
}

// Validate reports every configuration problem that would prevent the server
// from starting safely.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	var err error
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port %d is out of range", cfg.Server.Port))
	}
	if _, ok := knownEnvironments[cfg.Server.Environment]; !ok {
		err = multierr.Append(err, fmt.Errorf("server.environment %q is not one of dev, testing, qa, stage, prod", cfg.Server.Environment))
	}
	if cfg.Server.RateLimit.Requests > 0 && cfg.Server.RateLimit.Window <= 0 {
		err = multierr.Append(err, fmt.Errorf("server.rate_limit.window must be positive when requests is set"))
	}

	err = multierr.Append(err, validateAuth(cfg))
	err = multierr.Append(err, validatePayments(cfg.Payments))
	err = multierr.Append(err, validateEmail(cfg.Email))

	if _, perr := cfg.Pricing.BasePriceMoney(); perr != nil {
		err = multierr.Append(err, perr)
	}
	for _, status := range cfg.Credits.PurchaseEligibleStatuses {
		switch strings.ToLower(strings.TrimSpace(status)) {
		case "pending", "completed":
		default:
			err = multierr.Append(err, fmt.Errorf("credits.purchase_eligible_statuses: unknown status %q", status))
		}
	}

	if cfg.Credits.NodeID < 0 || cfg.Credits.NodeID > 1023 {
		err = multierr.Append(err, fmt.Errorf("credits.node_id must be within [0, 1023]"))
	}

	return err
}

func validateAuth(cfg *Config) error {
	var err error
	switch strings.ToLower(strings.TrimSpace(cfg.Auth.Provider)) {
	case "firebase":
		if strings.TrimSpace(cfg.Auth.Firebase.ProjectID) == "" {
			err = multierr.Append(err, fmt.Errorf("auth.firebase.project_id is required"))
		}
		if strings.TrimSpace(cfg.Auth.Firebase.APIKey) == "" {
			err = multierr.Append(err, fmt.Errorf("auth.firebase.api_key is required"))
		}
	case "local":
		if cfg.Server.Environment == EnvProduction {
			err = multierr.Append(err, fmt.Errorf("auth.provider local is not allowed in prod"))
		}
		if strings.TrimSpace(cfg.Auth.Local.JWT.Secret) == "" {
			err = multierr.Append(err, fmt.Errorf("auth.local.jwt.secret is required"))
		}
		for i, account := range cfg.Auth.Local.Accounts {
			if strings.TrimSpace(account.Email) == "" || strings.TrimSpace(account.PasswordHash) == "" {
				err = multierr.Append(err, fmt.Errorf("auth.local.accounts[%d] requires email and password_hash", i))
			}
		}
	default:
		err = multierr.Append(err, fmt.Errorf("auth.provider %q is not supported", cfg.Auth.Provider))
	}
	if cfg.Auth.CacheTTL < 0 {
		err = multierr.Append(err, fmt.Errorf("auth.cache_ttl must not be negative"))
	}
	return err
}

func validatePayments(cfg PaymentsConfig) error {
	if !strings.EqualFold(strings.TrimSpace(cfg.Provider), "stripe") {
		return fmt.Errorf("payments.provider %q is not supported", cfg.Provider)
	}

	var err error
	if strings.TrimSpace(cfg.Stripe.SecretKey) == "" {
		err = multierr.Append(err, fmt.Errorf("payments.stripe.secret_key is required"))
	}
	if strings.TrimSpace(cfg.Stripe.WebhookSecret) == "" {
		err = multierr.Append(err, fmt.Errorf("payments.stripe.webhook_secret is required"))
	}
	for name, raw := range map[string]string{
		"payments.stripe.success_url": cfg.Stripe.SuccessURL,
		"payments.stripe.cancel_url":  cfg.Stripe.CancelURL,
	} {
		if u, perr := url.Parse(raw); perr != nil || u.Scheme == "" || u.Host == "" {
			err = multierr.Append(err, fmt.Errorf("%s must be an absolute url", name))
		}
	}
	return err
}

func validateEmail(cfg EmailConfig) error {
	var err error
	if strings.TrimSpace(cfg.From) == "" {
		err = multierr.Append(err, fmt.Errorf("email.from is required"))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "sendgrid":
		if strings.TrimSpace(cfg.SendGrid.APIKey) == "" {
			err = multierr.Append(err, fmt.Errorf("email.sendgrid.api_key is required"))
		}
	case "smtp":
		if strings.TrimSpace(cfg.SMTP.Host) == "" {
			err = multierr.Append(err, fmt.Errorf("email.smtp.host is required"))
		}
	case "log":
	default:
		err = multierr.Append(err, fmt.Errorf("email.provider %q is not supported", cfg.Provider))
	}
	return err
}

// BasePriceMoney parses the configured base price into minor units.
func (c PricingConfig) BasePriceMoney() (money.Money, error) {
	price, err := money.ParseMajor(c.BasePrice, c.Currency)
	if err != nil {
		return money.Money{}, fmt.Errorf("pricing.base_price: %w", err)
	}
	if !price.IsPositive() {
		return money.Money{}, fmt.Errorf("pricing.base_price must be positive")
	}
	return price, nil
}
