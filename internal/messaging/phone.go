package messaging

import (
	"strings"
	"unicode"
)

// defaultCountryCode replaces the trunk prefix of local numbers.
const defaultCountryCode = "972"

// NormalizePhone strips everything but digits and rewrites a leading trunk 0
// to the country code, so "050-123-4567" and "+972501234567" compare equal.
func NormalizePhone(value string) string {
	digits := digitsOnly(value)
	if strings.HasPrefix(digits, "0") {
		digits = defaultCountryCode + digits[1:]
	}
	return digits
}

// NormalizeE164 returns NormalizePhone with a leading +.
func NormalizeE164(value string) string {
	digits := NormalizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
