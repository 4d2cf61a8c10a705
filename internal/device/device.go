// Package device turns client metadata into a human-readable device label.
package device

import (
	"strings"

	"github.com/mssola/user_agent"
)

// Type is the kind of client that opened a session.
type Type string

const (
	Web     Type = "web"
	IOS     Type = "ios"
	Android Type = "android"
	Other   Type = "other"
)

// ParseType validates a client-supplied device type.
func ParseType(s string) (Type, bool) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case Web, IOS, Android, Other:
		return t, true
	default:
		return "", false
	}
}

// Info describes the device a signup or login comes from.
type Info struct {
	Type      Type
	UserAgent string
	Model     string
}

// ResolveName derives the display name of a device:
//   - web with a user agent: "<Browser> on <OS>"
//   - ios/android with a model: the model as given
//   - anything else: "<Type> Device"
func ResolveName(info Info) string {
	switch {
	case info.Type == Web && strings.TrimSpace(info.UserAgent) != "":
		ua := user_agent.New(info.UserAgent)
		return webName(browserName(ua), ua.OSInfo().Name)
	case (info.Type == IOS || info.Type == Android) && info.Model != "":
		return info.Model
	default:
		return capitalize(string(info.Type)) + " Device"
	}
}

// browserName returns "" unless the agent is a recognised browser. user_agent falls back to the
// first product token for anything it cannot parse.
func browserName(ua *user_agent.UserAgent) string {
	if ua.Bot() || ua.Mozilla() == "" {
		return ""
	}
	name, _ := ua.Browser()
	return name
}

func webName(browser, os string) string {
	if browser == "" {
		browser = "Browser"
	}
	if os == "" {
		os = "unknown OS"
	}
	return browser + " on " + os
}

func capitalize(s string) string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
