package handler

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists failed rules per field.
type ValidationError url.Values

func (e ValidationError) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(e[f]) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", f, e[f][0]))
		}
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Add records a message for field.
func (e ValidationError) Add(field, message string) {
	url.Values(e).Add(field, message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form", "file"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// Validate checks req against its `validate` struct tags.
// Failures are returned as ValidationError keyed by the wire field name.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), ruleMessage(fe))
	}
	return out
}

// Validated is a decorator that rejects requests failing Validate.
func Validated[R any]() Decorator[R] {
	return func(next HandlerFunc[R]) HandlerFunc[R] {
		return func(ctx Context, req R) Response {
			if err := Validate(req); err != nil {
				return Error(err)
			}
			return next(ctx, req)
		}
	}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "len":
		return "must have exactly " + fe.Param()
	}
	return "failed " + fe.Tag()
}
