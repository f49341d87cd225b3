// Package validation schema-checks inbound event payloads before any
// handler state is touched.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// phonePattern accepts common international formats like +1 (555) 123-4567.
var phonePattern = regexp.MustCompile(`^[+]?[(]?[0-9]{3}[)]?[-\s.]?[0-9]{3}[-\s.]?[0-9]{4,6}$`)

// Error is a schema violation. Request/response events surface it to the
// sender; fire-and-forget events drop it silently.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// IsValidationError reports whether err is a schema violation rather than an
// internal failure.
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Tag names in messages should match the JSON payload, not Go fields.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	return &Validator{validate: v}
}

// Decode unmarshals raw into dst and checks its schema. Malformed JSON and
// constraint violations are both reported as a validation Error.
func (v *Validator) Decode(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return &Error{Message: "empty payload"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Error{Message: "malformed payload: " + err.Error()}
	}
	return v.Check(dst)
}

// Check validates an already-decoded payload.
func (v *Validator) Check(dst interface{}) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, describe(fe))
		}
		return &Error{Message: strings.Join(parts, "; ")}
	}
	return err
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", fe.Field())
	case "uri":
		return fmt.Sprintf("%s must be a valid URI", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
