package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	engine     *validator.Validate
	engineOnce sync.Once
)

// Engine returns the process-wide validator, configured on first use.
func Engine() *validator.Validate {
	engineOnce.Do(func() {
		engine = validator.New(validator.WithRequiredStructEnabled())
		configure(engine)
	})
	return engine
}

// Init configures the shared validator eagerly. Commands call it once at startup.
// - Uses JSON tag names in errors.
// - Registers the nowhitespace tag and aliases for common validations.
func Init() {
	_ = Engine()
}

func configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("nowhitespace", func(fl validator.FieldLevel) bool {
		return NewNoWhitespace().Validate(fl.Field().String()) == nil
	})
	v.RegisterAlias("pwd", "min=8") // password minimum length
	v.RegisterAlias("perm", "contains=.")
}

// IsEmail reports whether s is a syntactically valid email address.
func IsEmail(s string) bool {
	return Engine().Var(s, "email") == nil
}

// Struct validates a tagged struct (management command inputs).
func Struct(s any) error {
	return Engine().Struct(s)
}

// HasDetails reports whether err carries per-field failures that ToDetails
// can render: an aggregated *Error or validator.ValidationErrors.
func HasDetails(err error) bool {
	var agg *Error
	var verrs validator.ValidationErrors
	return errors.As(err, &agg) || errors.As(err, &verrs)
}

// ToDetails converts validation errors into a map[field]message suitable for
// command output and logs.
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}

	var agg *Error
	if errors.As(err, &agg) {
		out := make(map[string]string, len(agg.fields))
		for f, errs := range agg.fields {
			msgs := make([]string, 0, len(errs))
			for _, fe := range errs {
				msgs = append(msgs, fe.Message)
			}
			out[f] = strings.Join(msgs, " ")
		}
		return out
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = formatFieldError(fe)
		}
		return out
	}

	return map[string]string{"payload": "invalid payload"}
}

func formatFieldError(fe validator.FieldError) string {
	tag := fe.Tag()
	param := fe.Param()

	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "nowhitespace":
		return "must not have leading or trailing whitespace"
	case "uuid":
		return "must be a valid UUID"
	case "perm":
		return "must be in the form app_label.codename"
	case "min":
		if isNumberKind(fe.Kind()) {
			return "must be at least " + param
		}
		return "must be at least " + param + " characters long"
	case "max":
		if isNumberKind(fe.Kind()) {
			return "must be at most " + param
		}
		return "must be at most " + param + " characters long"
	case "pwd":
		return "min length 8"
	default:
		if param != "" {
			return fmt.Sprintf("validation failed for '%s' with parameter '%s'", tag, param)
		}
		return fmt.Sprintf("validation failed for '%s'", tag)
	}
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
