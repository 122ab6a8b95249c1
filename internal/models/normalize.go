package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrValidation is matched by every ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a required input that was empty or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// CapitalizeFirst upper-cases the first rune of s and leaves the rest as is.
func CapitalizeFirst(s string) string {
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	// A Caser is stateful, so each call gets its own.
	return cases.Upper(language.Swedish).String(string(r)) + s[size:]
}

// RequireText trims s and rejects it if nothing is left.
func RequireText(field, s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", NewValidationError(field, "required")
	}
	return trimmed, nil
}

// RequireNonNegative rejects negative and NaN amounts.
func RequireNonNegative(field string, v float64) error {
	if v < 0 || math.IsNaN(v) {
		return NewValidationError(field, "must not be negative")
	}
	return nil
}

// DigitsOnly strips every character that is not an ASCII digit.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ParseAmount reads a digits-only number. Anything unparsable is 0.
func ParseAmount(s string) float64 {
	v, err := strconv.ParseFloat(DigitsOnly(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseQuantity reads a digits-only quantity. Empty, zero or unparsable is 1.
func ParseQuantity(s string) int {
	v, err := strconv.Atoi(DigitsOnly(s))
	if err != nil || v <= 0 {
		return 1
	}
	return v
}
