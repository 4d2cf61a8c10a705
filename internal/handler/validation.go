package handler

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	registerOnce  sync.Once
	personNameRe  = regexp.MustCompile(`^[a-zA-Z\s]*$`)
	passwordRules = "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character"
)

// registerValidations adds the custom tags used by the request DTOs to gin's validator.
// A failed registration would silently disable those rules, so it panics instead.
func registerValidations() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			panic("handler: gin validator engine is not *validator.Validate")
		}
		if err := addValidations(v); err != nil {
			panic(fmt.Sprintf("handler: %v", err))
		}
	})
}

func addValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("failed to register password validation: %w", err)
	}
	if err := v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNameRe.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("failed to register personname validation: %w", err)
	}
	return nil
}

func strongPassword(s string) bool {
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// validationMessage describes the first violated rule of a binding error.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request payload"
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "password":
		return passwordRules
	case "personname":
		return fmt.Sprintf("%s can only contain letters and spaces", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
