package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	handleTag   = "handle"
	handleText  = "only letters, digits, underscores and hyphens are allowed"
	handleRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	categoryTag   = "category_"
	categoryText  = "only letters, digits, spaces and hyphens are allowed"
	categoryRegex = regexp.MustCompile(`^[a-z0-9]+([ -][a-z0-9]+)*$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(handleTag, handleValidation)
	RegisterCustomTranslation(validate, translator, handleTag, handleText)

	_ = validate.RegisterValidation(categoryTag, categoryValidation)
	RegisterCustomTranslation(validate, translator, categoryTag, categoryText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// handleValidation restricts usernames to URL-safe handle characters.
func handleValidation(fl validator.FieldLevel) bool {
	return handleRegex.MatchString(fl.Field().String())
}

// categoryValidation restricts course categories to cleaned lowercase slugs;
// payloads lowercase the field before validating.
func categoryValidation(fl validator.FieldLevel) bool {
	return categoryRegex.MatchString(fl.Field().String())
}
