// Package device turns User-Agent headers into short human-readable device
// descriptions.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknown = "Unknown Device"

// ParseUserAgent returns "<browser> on <os>", for example "Chrome on Linux".
// Mobile agents name the platform instead of the OS string. Empty input yields
// "Unknown Device".
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknown
	}
	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	if ua.Bot() {
		browser = "Bot " + browser
	}

	os := ua.OS()
	if ua.Mobile() && ua.Platform() != "" {
		os = ua.Platform()
	}
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

// Describe is ParseUserAgent for optional fields: empty input yields nil.
func Describe(userAgent string) *string {
	if strings.TrimSpace(userAgent) == "" {
		return nil
	}
	d := ParseUserAgent(userAgent)
	return &d
}
