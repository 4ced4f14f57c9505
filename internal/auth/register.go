package auth

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegistrationRequest is the sign-up form of the marketing site.
type RegistrationRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" validate:"required,max=120"`
	Company  string `json:"company,omitempty" validate:"omitempty,max=200"`
}

// RegistrationData echoes the accepted, non-secret registration fields.
type RegistrationData struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
}

// RegistrationResult is returned for every well-formed registration.
type RegistrationResult struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    RegistrationData `json:"data"`
}

// RegistrationDemoMessage is the fixed reply while registration is not persisted.
const RegistrationDemoMessage = "Registration received. Demo mode: accounts are not persisted."

// Registrar validates registration requests. It never creates credentials:
// the credential store stays read-only and login behaviour is unaffected.
type Registrar struct {
	validate *validator.Validate
	audit    AuditSink
}

// NewRegistrar builds a Registrar; audit may be nil.
func NewRegistrar(audit AuditSink) *Registrar {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Registrar{validate: v, audit: audit}
}

// Register validates req and returns the demo-mode acknowledgement.
func (r *Registrar) Register(ctx context.Context, req RegistrationRequest) (RegistrationResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.Company = strings.TrimSpace(req.Company)

	if err := r.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return RegistrationResult{}, newRegistrationError(verrs)
		}
		return RegistrationResult{}, fmt.Errorf("%w: validate registration: %w", ErrInternal, err)
	}

	if r.audit != nil {
		_ = r.audit.LogEvent(ctx, "auth.register.demo", map[string]any{
			"email": NormalizeEmail(req.Email),
		})
	}
	return RegistrationResult{
		Success: true,
		Message: RegistrationDemoMessage,
		Data: RegistrationData{
			Email:   NormalizeEmail(req.Email),
			Name:    req.Name,
			Company: req.Company,
		},
	}, nil
}

func newRegistrationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		default:
			fields[field] = fmt.Sprintf("%s failed %s validation", field, fe.Tag())
		}
	}
	return &ValidationError{Message: "Validation failed", Fields: fields}
}
