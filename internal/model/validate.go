package model

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

var tagText = map[string]string{
	"required": "this field is required",
	"hexcolor": "must be a hex color such as #3b82f6",
	"min":      "must not be negative",
}

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Report JSON names rather than Go field names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks an Evaluation or Category before it is saved.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		text, ok := tagText[fe.Tag()]
		if !ok {
			text = fe.Error()
		}
		fields = append(fields, FieldError{Field: fe.Field(), Error: text})
	}
	return NewValidationError(errors.New("data validation failed"), fields...)
}
