// Package validation wraps go-playground/validator with the custom rules used
// for phone identifiers and OTP codes, and English messages keyed by JSON field name.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	rePhone  = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	reDigits = regexp.MustCompile(`^[0-9]+$`)
)

// ErrTranslatorNotFound indicates the English translator could not be created.
var ErrTranslatorNotFound = errors.New("translator not found")

// Validator validates structs.
type Validator interface {
	Validate(data any) error
}

// FieldErrors maps a JSON field name to a human readable message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "validation error"
	}
	b, err := json.Marshal(map[string]string(fe))
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// V10Validator implements Validator with go-playground/validator v10.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New builds a V10Validator with English translations and the phone/digits rules.
func New() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}
	if err := registerCustom(validate, enTrans); err != nil {
		return nil, err
	}

	return &V10Validator{validate: validate, translator: enTrans}, nil
}

// MustNew is New for wiring code where a failure is a programming error.
func MustNew() *V10Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate returns FieldErrors when data violates its tags.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}
	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return err
	}
	out := make(FieldErrors, len(validateErrs))
	for _, fe := range validateErrs {
		out[fe.Field()] = fe.Translate(v.translator)
	}
	return out
}

func registerCustom(validate *validator.Validate, trans ut.Translator) error {
	rules := []struct {
		tag string
		re  *regexp.Regexp
		msg string
	}{
		{"phone", rePhone, "{0} must be a phone number of 7 to 15 digits"},
		{"digits", reDigits, "{0} must contain only digits"},
	}
	for _, rule := range rules {
		re := rule.re
		if err := validate.RegisterValidation(rule.tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		}); err != nil {
			return err
		}
		msg := rule.msg
		tag := rule.tag
		err := validate.RegisterTranslation(tag, trans,
			func(ut ut.Translator) error {
				return ut.Add(tag, msg, false)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				t, err := ut.T(fe.Tag(), fe.Field())
				if err != nil {
					return fe.Error()
				}
				return t
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}
