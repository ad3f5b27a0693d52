// Package validator wraps go-playground/validator v10 with English
// translations. It satisfies echo.Validator, so handlers call c.Validate
// after c.Bind and get an apperror back.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("translator not found")

// Validator validates structs and single values.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New constructs a Validator with English translations.
func New() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names instead of Go field names.
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
		return nil, fmt.Errorf("registering translations: %w", err)
	}

	return &Validator{validate: validate, translator: enTrans}, nil
}

// MustNew is New for package-level wiring; it panics on translator setup
// failure, which only happens on a broken build.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate validates a struct. Failures come back as a 422 apperror whose
// message lists every failing field, sorted for stable output.
func (v *Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return apperror.NewInternal(fmt.Errorf("validating %T: %w", data, err))
	}

	msgs := make([]string, 0, len(validateErrs))
	for _, fe := range validateErrs {
		msgs = append(msgs, fe.Translate(v.translator))
	}
	sort.Strings(msgs)

	return apperror.NewValidation(strings.Join(msgs, "; "))
}

// Email reports whether addr is a syntactically valid email address.
func (v *Validator) Email(addr string) bool {
	return v.validate.Var(addr, "required,email") == nil
}
