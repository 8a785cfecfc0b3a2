package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of every date field.
const DateLayout = "2006-01-02"

var (
	v *validator.Validate

	// Hearing time: 24h HH:MM.
	reClock = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	// License number: 3–40 chars, alphanumerics plus space, dash, slash.
	reLicense = regexp.MustCompile(`^[A-Za-z0-9 /-]{3,40}$`)
)

func init() {
	v = validator.New()

	// Use JSON tag as the field name in error output
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Money and quantities are validated as plain numbers (gt=0, lte=...)
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			n, _ := d.Float64()
			return n
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" {
			return true
		}
		_, err := time.Parse(DateLayout, val)
		return err == nil
	})

	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" {
			return true
		}
		return reClock.MatchString(val)
	})

	_ = v.RegisterValidation("license", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" {
			return true
		}
		return reLicense.MatchString(val)
	})
}

// Validate returns map[field][]messages (Laravel-like); nil means valid.
func Validate(s any) (map[string][]string, error) {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, err
		}
		out := make(map[string][]string)
		for _, e := range ve {
			field := e.Field() // already mapped from json tag
			if ns := e.Namespace(); strings.Contains(ns, "[") {
				// items[0].rate rather than a bare rate
				field = ns[strings.Index(ns, ".")+1:]
			}

			switch e.Tag() {
			case "required", "required_if", "required_with":
				out[field] = append(out[field], "This field is required")

			case "email":
				out[field] = append(out[field], "Invalid email format")

			case "min":
				if e.Kind() == reflect.String {
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s characters", e.Param()))
				} else if e.Kind() == reflect.Slice {
					out[field] = append(out[field], fmt.Sprintf("Must contain at least %s entries", e.Param()))
				} else {
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s", e.Param()))
				}

			case "max":
				if e.Kind() == reflect.String {
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s characters", e.Param()))
				} else if e.Kind() == reflect.Slice {
					out[field] = append(out[field], fmt.Sprintf("Must contain at most %s entries", e.Param()))
				} else {
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s", e.Param()))
				}

			case "oneof":
				out[field] = append(out[field], "Value is not allowed")

			case "uuid", "uuid4":
				out[field] = append(out[field], "Invalid UUID format")

			case "gt":
				out[field] = append(out[field], fmt.Sprintf("Must be greater than %s", e.Param()))

			case "gte":
				out[field] = append(out[field], fmt.Sprintf("Must be greater than or equal to %s", e.Param()))

			case "lte":
				out[field] = append(out[field], fmt.Sprintf("Must be less than or equal to %s", e.Param()))

			case "date":
				out[field] = append(out[field], "Invalid date (use YYYY-MM-DD)")

			case "clock":
				out[field] = append(out[field], "Invalid time (use HH:MM)")

			case "license":
				out[field] = append(out[field], "Invalid license number format")

			default:
				// Fallback to original error text if we missed a tag
				out[field] = append(out[field], e.Error())
			}
		}
		return out, nil
	}
	return nil, nil
}

// Add appends a message for field, allocating the map on first use.
func Add(errs map[string][]string, field, msg string) map[string][]string {
	if errs == nil {
		errs = make(map[string][]string)
	}
	errs[field] = append(errs[field], msg)
	return errs
}

// Cents adds an error on field when d carries more than two decimal places.
func Cents(errs map[string][]string, field string, d decimal.Decimal) map[string][]string {
	if d.Equal(d.Round(2)) {
		return errs
	}
	return Add(errs, field, "Must have at most 2 decimal places")
}

// ParseDate parses a YYYY-MM-DD value; empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DateOrder adds an error on laterField when it falls before earlierField.
// Unparseable values are left to the "date" tag.
func DateOrder(errs map[string][]string, earlierField, earlier, laterField, later string) map[string][]string {
	a, errA := ParseDate(earlier)
	b, errB := ParseDate(later)
	if errA != nil || errB != nil || a == nil || b == nil {
		return errs
	}
	if b.Before(*a) {
		return Add(errs, laterField, fmt.Sprintf("Must be on or after %s", earlierField))
	}
	return errs
}
