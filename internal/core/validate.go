package core

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// inputValidator builds the shared validator. Decimal amounts are exposed to
// the rule engine as float64 so numeric tags (gt=0) apply; reported field
// names follow the json tag.
func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()

		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		validate = v
	})
	return validate
}

// Validate checks the input against the transaction schema. It runs before
// any I/O and returns a ValidationError naming the first violated field, in
// declaration order: amount, description, category, date, type.
func (in TransactionInput) Validate() error {
	if strings.TrimSpace(in.Description) == "" {
		in.Description = ""
	}
	if strings.TrimSpace(in.Category) == "" {
		in.Category = ""
	}
	if err := inputValidator().Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Field()}
		}
		return err
	}
	return nil
}
