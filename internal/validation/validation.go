// Package validation wraps go-playground/validator with the rules and
// messages of the user service.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tubeline/user-service/pkg/apperr"
)

const (
	MsgRequired = "Please provide all the required fields"
	MsgEmail    = "Please provide a valid email"
	MsgPassword = "Password must be 6 to 72 characters long and contain at least one uppercase letter, one lowercase letter, one number and one special character (@$!%*?&)"
)

const specials = "@$!%*?&"

// MaxPasswordLen is the longest input bcrypt accepts.
const MaxPasswordLen = 72

// StrongPassword reports whether p has 6 to MaxPasswordLen characters drawn
// only from letters, digits and @$!%*?&, with at least one of each class.
func StrongPassword(p string) bool {
	if len(p) < 6 || len(p) > MaxPasswordLen {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(specials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

func strongPassword(fl validator.FieldLevel) bool {
	return StrongPassword(fl.Field().String())
}

var validate = New()

// New returns a validator with the service rules registered and field names
// reported by their json tag.
func New() *validator.Validate {
	v := validator.New()
	register(v)
	return v
}

func register(v *validator.Validate) {
	_ = v.RegisterValidation("strongpassword", strongPassword)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// Struct validates s and returns a validation *apperr.Error describing the
// first failing field.
func Struct(s interface{}) error {
	return Translate(validate.Struct(s))
}

// Email validates a single address.
func Email(addr string) bool {
	return validate.Var(addr, "required,email") == nil
}

// Translate maps validator errors to the user-facing messages. Other errors
// pass through unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return apperr.Wrap(apperr.KindValidation, message(verrs[0]), err)
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return MsgRequired
	case "email":
		return MsgEmail
	case "strongpassword":
		return MsgPassword
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be no longer than %s characters", e.Field(), e.Param())
	}
	return fmt.Sprintf("%s is invalid", e.Field())
}
