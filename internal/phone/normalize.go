// Package phone canonicalizes raw phone number input. Every comparison of two
// phone numbers anywhere in the system goes through the lookup key produced
// here; the display form is only ever shown back to users.
package phone

import (
	"strings"

	"github.com/Vast-Academy/account-android-app-backend/internal/constants"
)

// Normalize maps a raw phone string to its canonical lookup key and display
// form. The lookup key is the digit-only representation truncated to the last
// ten digits; inputs with fewer than eight digits are invalid and yield an
// empty key. An empty key must never match any stored record.
func Normalize(raw string) (lookupKey, display string) {
	digits := stripNonDigits(raw)
	if digits == "" {
		return "", ""
	}

	display = digits
	if strings.HasPrefix(strings.TrimSpace(raw), "+") {
		display = "+" + digits
	}

	if len(digits) < constants.MinPhoneDigits {
		return "", display
	}
	if len(digits) > constants.PhoneLookupKeyDigits {
		digits = digits[len(digits)-constants.PhoneLookupKeyDigits:]
	}
	return digits, display
}

// LookupKey is a convenience wrapper returning only the canonical key.
func LookupKey(raw string) string {
	key, _ := Normalize(raw)
	return key
}

// stripNonDigits keeps ASCII digits only. Other scripts' digit runes are not
// valid lookup key material; slicing the key by byte length assumes one byte
// per digit.
func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
