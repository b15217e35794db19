package utils

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// FormatDate renders a date in the zero-padded YYYYMMDD form the platform
// expects in agenda and lesson paths. Local calendar fields are used as-is,
// with no timezone conversion.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%04d%02d%02d", t.Year(), int(t.Month()), t.Day())
}

// Digits strips every non-digit rune from s. The platform's numeric account
// id is the digit run of the alphanumeric identifier (e.g. "S1234AB" -> "1234").
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}
