package validator

import (
	"fmt"
	"reflect"
	"strings"

	"foodorder/internal/usecase"

	validatorv10 "github.com/go-playground/validator/v10"
)

// RequestValidator はechoのValidator。リクエストDTOのvalidateタグを見る
type RequestValidator struct {
	v *validatorv10.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validatorv10.New()

	// エラーのフィールド名はjsonタグで出す
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}

	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		return usecase.ValidationError("%s", err.Error())
	}

	//どのフィールドが悪いかを全部並べる
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return usecase.ValidationError("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validatorv10.FieldError) string {
	field := fieldPath(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be > %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

// "placeOrderRequest.items[0].price" → "items[0].price"
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
