package auth

import "strings"

// MaskPhone masks a phone number for logging (e.g., +4******90).
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}
