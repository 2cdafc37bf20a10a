package form

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Rule checks one field. It returns the message to show, or "" when value
// passes. values is the whole form, for rules that compare fields.
type Rule func(value any, values Values) string

// Rules maps a field name to the rules run against it, in order. The first
// failing rule wins.
type Rules map[string][]Rule

var (
	validate     = newValidator()
	phonePattern = regexp.MustCompile(`^[\d\s\-\+\(\)]{10,}$`)
	hasLetter    = regexp.MustCompile(`[a-zA-Z]`)
	hasDigit     = regexp.MustCompile(`[0-9]`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// check runs a validator tag against v, failing on kinds the tag cannot
// inspect instead of letting the validator panic.
func check(v any, tag string) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return validate.Var(v, tag) == nil
	}
	return false
}

func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// Required rejects nil, zero values and whitespace-only strings.
func Required(value any, _ Values) string {
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	if !check(value, "required") {
		return "This field is required"
	}
	return ""
}

func Email(value any, _ Values) string {
	if !check(text(value), "required,email") {
		return "Invalid email address"
	}
	return ""
}

func MinLength(n int) Rule {
	tag := fmt.Sprintf("required,min=%d", n)
	return func(value any, _ Values) string {
		if !check(text(value), tag) {
			return fmt.Sprintf("Minimum %d characters required", n)
		}
		return ""
	}
}

func MaxLength(n int) Rule {
	tag := fmt.Sprintf("max=%d", n)
	return func(value any, _ Values) string {
		if !check(text(value), tag) {
			return fmt.Sprintf("Maximum %d characters allowed", n)
		}
		return ""
	}
}

// Matches requires value to equal the current value of field, as in a
// password confirmation.
func Matches(field string) Rule {
	return func(value any, values Values) string {
		if text(value) != text(values[field]) {
			return "Does not match " + field
		}
		return ""
	}
}

// Password requires six or more characters mixing letters and digits.
func Password(value any, _ Values) string {
	s := text(value)
	if !check(s, "min=6") {
		return "Password must be at least 6 characters"
	}
	if !hasLetter.MatchString(s) || !hasDigit.MatchString(s) {
		return "Password must contain letters and numbers"
	}
	return ""
}

func Phone(value any, _ Values) string {
	if !check(text(value), "phone") {
		return "Invalid phone number"
	}
	return ""
}

func URL(value any, _ Values) string {
	if !check(text(value), "url") {
		return "Invalid URL"
	}
	return ""
}

// Number accepts numeric values and strings holding a signed decimal.
func Number(value any, _ Values) string {
	if isNumber(value) {
		return ""
	}
	if !check(strings.TrimSpace(text(value)), "required,numeric") {
		return "Must be a number"
	}
	return ""
}

func Latitude(value any, _ Values) string {
	if !isNumber(value) {
		value = strings.TrimSpace(text(value))
	}
	if !check(value, "latitude") {
		return "Latitude must be between -90 and 90"
	}
	return ""
}

func Longitude(value any, _ Values) string {
	if !isNumber(value) {
		value = strings.TrimSpace(text(value))
	}
	if !check(value, "longitude") {
		return "Longitude must be between -180 and 180"
	}
	return ""
}

// Pattern requires a non-empty value matching re. msg defaults to
// "Invalid format".
func Pattern(re *regexp.Regexp, msg string) Rule {
	if msg == "" {
		msg = "Invalid format"
	}
	return func(value any, _ Values) string {
		s := text(value)
		if s == "" || !re.MatchString(s) {
			return msg
		}
		return ""
	}
}

// Optional skips rules when value is empty.
func Optional(rules ...Rule) Rule {
	return func(value any, values Values) string {
		if strings.TrimSpace(text(value)) == "" {
			return ""
		}
		return Check(value, values, rules...)
	}
}

// Common rule sets for sign-in and profile forms.
var (
	EmailRules    = []Rule{Required, Email}
	PasswordRules = []Rule{Required, MinLength(6)}
	PhoneRules    = []Rule{Required, Phone}
	URLRules      = []Rule{Required, URL}
	NameRules     = []Rule{Required, MinLength(2)}
)

// Check runs rules against value and returns the first failure message.
func Check(value any, values Values, rules ...Rule) string {
	for _, r := range rules {
		if msg := r(value, values); msg != "" {
			return msg
		}
	}
	return ""
}
