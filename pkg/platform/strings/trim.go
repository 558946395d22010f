// Package strings holds small slice-of-string helpers for request normalization.
package strings

import (
	"strings"
)

// TrimEach returns a copy of values with every element trimmed. Order, blanks
// and repeats are kept so validation sees every submitted entry. A nil or
// empty input is returned as is.
func TrimEach(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

// TrimPtr trims *s in place when s is non-nil.
func TrimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
