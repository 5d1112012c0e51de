package privacy

import (
	"strings"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits
// Example: "+1234567890" -> "+******7890"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	// Handle + prefix numbers specially
	if strings.HasPrefix(phone, "+") {
		if len(phone) == 1 { // Just "+"
			return phone
		}
		if len(phone) <= 5 { // "+1234" or shorter
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-5) + phone[len(phone)-4:]
	}

	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// MaskIdentity masks an account identity for log output, keeping a short
// suffix so related log lines can still be correlated.
func MaskIdentity(id string) string {
	if len(id) <= 4 {
		return strings.Repeat("*", len(id))
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}
