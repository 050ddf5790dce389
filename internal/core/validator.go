package core

import (
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"reride/internal/types"
)

// Validator wraps go-playground/validator and translates its failures into
// field-level AppErrors so handlers return every offending field at once.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator configured to report JSON field names
// rather than Go struct field names.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates the struct's `validate` tags and returns a
// *types.AppError with one message per failed field, or nil when valid.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError: the caller passed something that is not a
		// struct. That is a programming error, not client input.
		v.logger.Error("validator invoked with non-struct value", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "internal validation failure", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, exists := fields[fe.Field()]; !exists {
			fields[fe.Field()] = messageForTag(fe)
		}
	}
	return types.NewValidationError(types.ErrCodeValidationRequest, fields)
}

// jsonFieldName extracts the json tag name for error reporting.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// messageForTag renders a human-readable message for common validation tags.
func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	default:
		return "failed validation rule '" + fe.Tag() + "'"
	}
}
