package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// LoadConfig loads and validates the ValoQuick configuration.
//
// The loading sequence is:
//  1. Enforce UTC process timezone to prevent billing-period drift bugs.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Process envconfig struct tags to populate the Config struct.
//  4. Validate the struct using go-playground/validator.
func LoadConfig() (*Config, error) {
	time.Local = time.UTC

	// Local development convenience; production relies on real env vars.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateConfig runs struct validation and normalizes the failure into a
// single diagnostic error listing every violated field.
func validateConfig(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		msg := "invalid configuration:"
		for _, fe := range fieldErrs {
			msg += fmt.Sprintf(" %s (%s);", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%s", msg)
	}

	return fmt.Errorf("validating configuration: %w", err)
}
