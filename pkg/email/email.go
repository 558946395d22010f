// Package email normalizes addresses shared by registration and sighting intake.
package email

import "strings"

// Normalize trims surrounding whitespace and lowercases the address.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
