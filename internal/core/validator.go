package core

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// Validator wraps go-playground/validator and translates validation failures
// into AppErrors with per-field details, so handlers never leak the library's
// error strings to clients.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator and registers domain-specific rules.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())

	// plan: one of the supported recurring plans.
	_ = v.RegisterValidation("plan", func(fl validator.FieldLevel) bool {
		return types.Plan(fl.Field().String()).Valid()
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates the struct's `validate` tags. On failure it
// returns a *types.AppError with code "validation_missing_required_field"
// and a details map of field -> violated rule.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"validation target is not a struct",
			err,
		)
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"request validation failed",
			err,
			details,
		)
	}

	return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
}
