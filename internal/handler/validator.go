package handler

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-records/internal/apperr"
)

// FieldError names one invalid request field by its JSON path.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError is returned for request bodies that fail their rules.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

// Error returns the summary message.
func (e *ValidationError) Error() string { return e.Message }

// Validator adapts go-playground/validator to echo. Field paths use the
// json tag names.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns the echo validator. Field paths in errors use the
// json tag names so clients see the same names they sent.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate runs the struct tags on i and converts failures into a
// *ValidationError.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Message: "Validation failed"}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Path: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return label + " must be at least " + fe.Param() + " characters"
	case "max":
		return label + " too long"
	case "required_with":
		if fe.Field() == "currentPassword" {
			return "Current password is required when setting a new password"
		}
		return label + " is required"
	case "datetime":
		return label + " must be a date formatted as YYYY-MM-DD"
	}
	return label + " is invalid"
}

// humanize turns "newPassword" into "New password".
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// bindValid decodes the body into req and validates it.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.BadRequest("Invalid request body")
	}
	return c.Validate(req)
}
