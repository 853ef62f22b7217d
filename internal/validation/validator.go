// Package validation validates request bodies with go-playground/validator
// and reports failures as store validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	registrystore "github.com/medb/medb/internal/registry/store"
)

// MaxUsernameLen is the longest accepted username.
const MaxUsernameLen = 30

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_]*$`)

const (
	msgUsernameEmpty   = "Username cannot be empty"
	msgUsernameTooLong = "Username must be 30 characters or less"
	msgUsernameInvalid = "Username can only contain letters, numbers, and underscores, and must start with a letter or number"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the username rule registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("fieldkey", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return !strings.Contains(s, ".") && !strings.HasPrefix(s, "$")
	})

	return &Validator{v: v}
}

// Validate validates a struct. The first failing field, by name, is reported.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return formatError(err)
	}
	return nil
}

// Username trims raw and checks it against the username rules.
func (v *Validator) Username(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if err := v.v.Var(name, fmt.Sprintf("required,max=%d,username", MaxUsernameLen)); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) || len(errs) == 0 {
			return "", err
		}
		msg := msgUsernameInvalid
		switch errs[0].Tag() {
		case "required":
			msg = msgUsernameEmpty
		case "max":
			msg = msgUsernameTooLong
		}
		return "", &registrystore.ValidationError{Field: "username", Message: msg}
	}
	return name, nil
}

func formatError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field() < errs[j].Field() })
	e := errs[0]
	return &registrystore.ValidationError{Field: e.Field(), Message: e.Field() + " " + friendlyMessage(e)}
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", e.Param())
		}
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must not contain more than %s items", e.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "username":
		return "can only contain letters, numbers, and underscores, and must start with a letter or number"
	case "fieldkey":
		return "cannot contain '.' or start with '$'"
	default:
		return "is invalid"
	}
}
