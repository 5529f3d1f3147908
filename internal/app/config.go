package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Supported deployment environments.
const (
	EnvDevelopment = "dev"
	EnvTesting     = "testing"
	EnvQA          = "qa"
	EnvStaging     = "stage"
	EnvProduction  = "prod"
)

// Config represents the runtime configuration for the team credits backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Payments    PaymentsConfig    `mapstructure:"payments"`
	Email       EmailConfig       `mapstructure:"email"`
	Pricing     PricingConfig     `mapstructure:"pricing"`
	Credits     CreditsConfig     `mapstructure:"credits"`
	Team        TeamConfig        `mapstructure:"team"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	Environment     string          `mapstructure:"environment"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds requests per client within a window. Zero requests disables limiting.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AuthConfig captures identity provider settings.
type AuthConfig struct {
	// Provider selects the identity backend: firebase or local.
	Provider string            `mapstructure:"provider"`
	CacheTTL time.Duration     `mapstructure:"cache_ttl"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Firebase FirebaseSettings  `mapstructure:"firebase"`
	Local    LocalAuthSettings `mapstructure:"local"`
}

// FirebaseSettings configure Firebase ID token verification and password sign-in.
type FirebaseSettings struct {
	ProjectID      string `mapstructure:"project_id"`
	APIKey         string `mapstructure:"api_key"`
	SignInEndpoint string `mapstructure:"sign_in_endpoint"`
	KeysURL        string `mapstructure:"keys_url"`
}

// LocalAuthSettings configure the development identity provider.
type LocalAuthSettings struct {
	JWT      JWTSettings         `mapstructure:"jwt"`
	Accounts []LocalAccountEntry `mapstructure:"accounts"`
}

// JWTSettings configures locally issued tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// LocalAccountEntry is a configured manager account with a bcrypt password hash.
type LocalAccountEntry struct {
	Email        string `mapstructure:"email"`
	PasswordHash string `mapstructure:"password_hash"`
}

// PaymentsConfig configures the payment provider.
type PaymentsConfig struct {
	Provider string         `mapstructure:"provider"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Stripe   StripeSettings `mapstructure:"stripe"`
}

// StripeSettings hold Stripe API credentials and checkout redirects.
type StripeSettings struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	SuccessURL    string `mapstructure:"success_url"`
	CancelURL     string `mapstructure:"cancel_url"`
	ProductName   string `mapstructure:"product_name"`
	// APIBase overrides the Stripe API host, e.g. for stripe-mock.
	APIBase string `mapstructure:"api_base"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	// Provider selects the mailer: sendgrid, smtp or log.
	Provider string         `mapstructure:"provider"`
	From     string         `mapstructure:"from"`
	FromName string         `mapstructure:"from_name"`
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
}

// SendGridConfig holds SendGrid API settings.
type SendGridConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Host    string        `mapstructure:"host"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PricingConfig configures the per-credit base price.
type PricingConfig struct {
	BasePrice string `mapstructure:"base_price"`
	Currency  string `mapstructure:"currency"`
}

// CreditsConfig configures purchase eligibility and pending grant reporting.
type CreditsConfig struct {
	PurchaseEligibleStatuses []string      `mapstructure:"purchase_eligible_statuses"`
	PendingExpiry            time.Duration `mapstructure:"pending_expiry"`
	// NodeID seeds purchase reference generation and must differ per instance.
	NodeID int64 `mapstructure:"node_id"`
}

// TeamConfig configures the links sent to invited members.
type TeamConfig struct {
	GenerationBaseURL string `mapstructure:"generation_base_url"`
	ResultsBaseURL    string `mapstructure:"results_base_url"`
}

// MaintenanceConfig schedules background housekeeping.
type MaintenanceConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
	CacheSchedule      string `mapstructure:"cache_schedule"`
	AuditSchedule      string `mapstructure:"audit_schedule"`
	PendingSchedule    string `mapstructure:"pending_schedule"`
}

// legacyEnv maps configuration keys to the environment variable names used by
// earlier deployments. The prefixed form always takes precedence.
var legacyEnv = map[string]string{
	"server.environment":             "APP_ENV",
	"payments.stripe.secret_key":     "STRIPE_SECRET_KEY",
	"payments.stripe.webhook_secret": "STRIPE_WEBHOOK_KEY",
	"email.sendgrid.api_key":         "SENDGRID_API_KEY",
	"email.from":                     "FROM_EMAIL",
	"auth.firebase.api_key":          "FIREBASE_API_KEY",
	"auth.firebase.project_id":       "FIREBASE_PROJECT_ID",
	"pricing.base_price":             "BASE_PRICE_PER_CREDIT",
}

const envPrefix = "TEAMCREDITS"

// LoadConfig initialises application configuration using Viper with sensible defaults.
// A .env file in the working directory is loaded first when present.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	config.Server.Environment = NormaliseEnvironment(config.Server.Environment)
	return &config, nil
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("config: bind env %s: %w", legacy, err)
		}
	}
	return nil
}

// NormaliseEnvironment maps aliases such as "production" onto the canonical names.
func NormaliseEnvironment(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "development", "local", EnvDevelopment:
		return EnvDevelopment
	case "production", EnvProduction:
		return EnvProduction
	case "staging", EnvStaging:
		return EnvStaging
	case "test", EnvTesting:
		return EnvTesting
	default:
		return strings.ToLower(strings.TrimSpace(env))
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit.requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/teamcredits.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.mysql.port", 3306)

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)

	v.SetDefault("auth.provider", "firebase")
	v.SetDefault("auth.cache_ttl", "5m")
	v.SetDefault("auth.timeout", "5s")
	v.SetDefault("auth.firebase.project_id", "")
	v.SetDefault("auth.firebase.api_key", "")
	v.SetDefault("auth.firebase.sign_in_endpoint", "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword")
	v.SetDefault("auth.firebase.keys_url", "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com")
	v.SetDefault("auth.local.jwt.secret", "")
	v.SetDefault("auth.local.jwt.issuer", "teamcredits")
	v.SetDefault("auth.local.jwt.access_token_ttl", "1h")

	v.SetDefault("payments.provider", "stripe")
	v.SetDefault("payments.timeout", "10s")
	v.SetDefault("payments.stripe.secret_key", "")
	v.SetDefault("payments.stripe.webhook_secret", "")
	v.SetDefault("payments.stripe.success_url", "https://aisuitup.com/success")
	v.SetDefault("payments.stripe.cancel_url", "https://aisuitup.com/cancel")
	v.SetDefault("payments.stripe.product_name", "Credits Purchase")
	v.SetDefault("payments.stripe.api_base", "")

	v.SetDefault("email.provider", "sendgrid")
	v.SetDefault("email.from", "")
	v.SetDefault("email.from_name", "")
	v.SetDefault("email.sendgrid.api_key", "")
	v.SetDefault("email.sendgrid.host", "")
	v.SetDefault("email.sendgrid.timeout", "10s")
	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("pricing.base_price", "1.00")
	v.SetDefault("pricing.currency", "inr")

	v.SetDefault("credits.purchase_eligible_statuses", []string{"pending"})
	v.SetDefault("credits.pending_expiry", "24h")
	v.SetDefault("credits.node_id", 1)

	v.SetDefault("team.generation_base_url", "https://aisuitup.com/generate")
	v.SetDefault("team.results_base_url", "https://aisuitup.com/results")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.audit_retention_days", 90)
	v.SetDefault("maintenance.cache_schedule", "@hourly")
	v.SetDefault("maintenance.audit_schedule", "@daily")
	v.SetDefault("maintenance.pending_schedule", "@hourly")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
