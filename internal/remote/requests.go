package remote

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// LoginRequest is the sign-in form. The auth service expects the email in
// its username field.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks required fields before any round trip
func (r *LoginRequest) Validate() error {
	return toValidationError(validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 254)),
		validation.Field(&r.Password, validation.Required),
	))
}

// RegisterRequest is the sign-up form
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields and the email format
func (r *RegisterRequest) Validate() error {
	return toValidationError(validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Email,
			validation.Required,
			validation.Length(3, 254),
			is.EmailFormat,
		),
		validation.Field(&r.Password, validation.Required),
	))
}

// toValidationError converts ozzo's per-field errors into the domain type
func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	fields := make(map[string]string, len(errs))
	for field, fieldErr := range errs {
		fields[field] = fieldErr.Error()
	}
	return &domain.ValidationError{Fields: fields}
}
