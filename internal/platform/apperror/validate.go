package apperror

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

func label(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

// Required records an error when value is blank.
func (v *ValidationError) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, fmt.Sprintf("The %s field is required.", label(field)))
	}
}

// Max records an error when value is longer than n characters. Nil is accepted.
func (v *ValidationError) Max(field string, value *string, n int) {
	if value != nil && utf8.RuneCountInString(*value) > n {
		v.Add(field, fmt.Sprintf("The %s may not be greater than %d characters.", label(field), n))
	}
}

// Email records an error when value is set and not a bare email address.
func (v *ValidationError) Email(field string, value *string) {
	if value == nil || *value == "" {
		return
	}
	addr, err := mail.ParseAddress(*value)
	if err != nil || addr.Address != *value {
		v.Add(field, fmt.Sprintf("The %s must be a valid email address.", label(field)))
	}
}
