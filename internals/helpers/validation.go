package helper

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	kePhoneIntl  = regexp.MustCompile(`^254[17]\d{8}$`)
	kePhoneLocal = regexp.MustCompile(`^0[17]\d{8}$`)
)

// NewValidator returns a validator that reports json field names and knows ke_phone.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("ke_phone", func(fl validator.FieldLevel) bool {
		return IsKenyanPhone(fl.Field().String())
	})
	return v
}

func cleanPhone(phone string) string {
	p := strings.TrimSpace(phone)
	p = strings.NewReplacer(" ", "", "-", "").Replace(p)
	return strings.TrimPrefix(p, "+")
}

func IsKenyanPhone(phone string) bool {
	p := cleanPhone(phone)
	return kePhoneIntl.MatchString(p) || kePhoneLocal.MatchString(p)
}

// NormalizeKenyanPhone turns 07XXXXXXXX / +2547XXXXXXXX into 2547XXXXXXXX.
func NormalizeKenyanPhone(phone string) string {
	p := cleanPhone(phone)
	if strings.HasPrefix(p, "0") {
		return "254" + p[1:]
	}
	return p
}
