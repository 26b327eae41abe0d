package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/es"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	es_translations "github.com/go-playground/validator/v10/translations/es"

	"einstein-dashboard/internal/domain"
)

const (
	sectionLetterTag  = "section_letter"
	sectionLetterText = "debe ser una sola letra (A-Z)"

	requiredText = "este campo es obligatorio"
)

// Validator checks form drafts and renders Spanish messages keyed by the
// JSON path of each failing field.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func New() *Validator {
	locale := es.New()
	uni := ut.New(locale, locale)
	translator, _ := uni.GetTranslator("es")

	v := validator.New(validator.WithRequiredStructEnabled())
	_ = es_translations.RegisterDefaultTranslations(v, translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(sectionLetterTag, func(fl validator.FieldLevel) bool {
		_, err := domain.NormalizeSectionName(fl.Field().String())
		return err == nil
	})
	registerTranslation(v, translator, sectionLetterTag, sectionLetterText, false)
	registerTranslation(v, translator, "required", requiredText, true)

	return &Validator{validate: v, translator: translator}
}

func registerTranslation(v *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = v.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates s and returns domain.ValidationErrors, or nil.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(domain.ValidationErrors, len(fieldErrs))
	for _, fe := range fieldErrs {
		out.Add(fieldPath(fe.Namespace()), fe.Translate(v.translator))
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
