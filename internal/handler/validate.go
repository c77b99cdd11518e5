package handler

import (
    "errors"
    "fmt"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
)

// RequestValidator plugs validator tags into echo's c.Validate.
type RequestValidator struct {
    validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    return &RequestValidator{validate: v}
}

// Validate returns a single error naming every failed field.
func (v *RequestValidator) Validate(i any) error {
    err := v.validate.Struct(i)
    if err == nil {
        return nil
    }
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) {
        return err
    }
    msgs := make([]string, 0, len(verrs))
    for _, fe := range verrs {
        msgs = append(msgs, fieldMessage(fe))
    }
    return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
    field := fe.Field()
    switch fe.Tag() {
    case "required":
        return field + " is required"
    case "min":
        return fmt.Sprintf("%s must be at least %s", field, fe.Param())
    case "max":
        return fmt.Sprintf("%s must be at most %s", field, fe.Param())
    case "gt":
        return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
    case "alphanum":
        return field + " must contain only letters and digits"
    default:
        return fmt.Sprintf("%s failed %s", field, fe.Tag())
    }
}
