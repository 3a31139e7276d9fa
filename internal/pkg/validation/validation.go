package validation

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Brazilian mobile numbers with area code, digits only: 11 or 12 digits.
var whatsappRe = regexp.MustCompile(`^\d{11,12}$`)

const MinPasswordLength = 6

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

func IsValidWhatsApp(s string) bool {
	return whatsappRe.MatchString(s)
}

func IsValidPassword(password string) bool {
	return len(password) >= MinPasswordLength
}

// FieldErrors maps a json field name to a human readable message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = validate.RegisterValidation("whatsapp", func(fl validator.FieldLevel) bool {
			return IsValidWhatsApp(fl.Field().String())
		})
		_ = validate.RegisterValidation("webemail", func(fl validator.FieldLevel) bool {
			return IsValidEmail(fl.Field().String())
		})
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// Struct validates v using its validate tags. It returns FieldErrors or nil.
func Struct(v interface{}) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "This field is required"
	case "whatsapp":
		return "Invalid WhatsApp number, use 11 or 12 digits"
	case "webemail":
		return "Invalid email format"
	case "min":
		return "Must be at least " + fe.Param() + " characters"
	default:
		return "Invalid value"
	}
}
