// Package config defines the global configuration structure for the ValoQuick
// backend. Configuration is loaded once at process initialization and is
// immutable thereafter, following 12-Factor principles: values come from the
// OS environment, optionally seeded from a local dotenv file.
//
// Any missing required value or invalid format fails startup immediately.
package config

import (
	"time"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of credentials.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Billing  BillingConfig
	Trial    TrialConfig
	AWS      AWSConfig
}

// AuthConfig holds the signing secret for API access tokens.
type AuthConfig struct {
	TokenSecret SecretString  `envconfig:"AUTH_TOKEN_SECRET" validate:"required"`
	TokenTTL    time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"24h"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// BillingConfig holds payment provider credentials and multi-tenant scoping.
type BillingConfig struct {
	ProviderKeyID     string       `envconfig:"RAZORPAY_KEY_ID" validate:"required"`
	ProviderKeySecret SecretString `envconfig:"RAZORPAY_KEY_SECRET" validate:"required"`
	WebhookSecret     SecretString `envconfig:"RAZORPAY_WEBHOOK_SECRET" validate:"required"`

	// AppTag is stamped into the notes metadata of every outbound order and
	// subscription, and checked on every inbound webhook. The provider
	// account may be shared with unrelated applications; events without
	// this tag are acknowledged and ignored.
	AppTag string `envconfig:"BILLING_APP_TAG" default:"valoquick"`

	// ProviderTimeout bounds every outbound provider call.
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	// SeatCeiling is the hard upper bound on purchasable seats per firm.
	SeatCeiling int `envconfig:"SEAT_CEILING" default:"50"`
}

// TrialConfig holds free-trial metering and abuse-detection settings.
type TrialConfig struct {
	// FreeReports is the number of free valuation reports a firm may
	// generate before subscribing.
	FreeReports int `envconfig:"TRIAL_FREE_REPORTS" default:"3"`

	// AbuseAlertCooldown rate-limits abuse alerts per IP prefix.
	AbuseAlertCooldown time.Duration `envconfig:"TRIAL_ABUSE_ALERT_COOLDOWN" default:"1h"`
}

// AWSConfig holds the queue used for the asynchronous notification side
// channel (renewal/cancellation emails, abuse alerts).
type AWSConfig struct {
	Region            string `envconfig:"AWS_REGION" default:"us-east-1"`
	NotificationQueue string `envconfig:"SQS_NOTIFICATIONS" validate:"required,url"`

	// LocalStack support; empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}
