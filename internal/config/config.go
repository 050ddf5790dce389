// Package config defines the service configuration. Configuration is loaded
// once at process startup and is immutable thereafter, following 12-Factor
// principles: code and configuration stay strictly separated, and any missing
// required value or invalid format fails the process immediately.
//
// Values are resolved from the OS environment, with a local .env file as a
// non-overriding fallback for development.
package config

import (
	"time"

	"reride/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to keep sensitive values out of logs.
type SecretString = types.SecretString

// Config is the top-level configuration for the marketplace subscription
// service. Sub-components receive only the subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"reride-subscriptions"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server   ServerConfig
	Database DatabaseConfig
	Billing  BillingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`

	// CORSAllowedOrigins is the comma-separated list of origins allowed to
	// call the API from a browser (the admin console and seller dashboard).
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// RequestTimeout is the soft deadline applied to every request context.
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"25s"`

	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// BillingConfig holds the Stripe integration settings for paid plan upgrades.
type BillingConfig struct {
	// StripeSecretKey authorizes calls to the Stripe REST API. Empty disables
	// checkout; plan assignment then only happens through the admin API.
	StripeSecretKey SecretString `envconfig:"STRIPE_SECRET_KEY"`

	// StripeWebhookSecret verifies the Stripe-Signature header on webhooks.
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET"`

	// Checkout redirect targets on the seller dashboard.
	CheckoutSuccessURL string `envconfig:"CHECKOUT_SUCCESS_URL" default:"http://localhost:3000/billing/success"`
	CheckoutCancelURL  string `envconfig:"CHECKOUT_CANCEL_URL" default:"http://localhost:3000/billing/cancel"`

	// SubscriptionCycleDays is the paid-plan cycle length applied when a
	// checkout completes; the assigned expiry is activation + this many days.
	SubscriptionCycleDays int `envconfig:"SUBSCRIPTION_CYCLE_DAYS" default:"30" validate:"min=1"`
}
