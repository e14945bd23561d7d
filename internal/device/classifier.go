// Package device classifies clients from their user-agent string.
//
// User-agent sniffing is brittle, so the classifier hides behind a small
// interface: swapping in an explicit client-supplied device hint later
// does not touch call sites.
package device

import (
	"strings"

	"github.com/avilov/tutorlab/internal/domain"
)

// Classifier maps a raw client-agent string to a device category.
type Classifier interface {
	Classify(userAgent string) domain.DeviceType
}

// Tablet signatures must be checked before phone signatures: an iPad or
// Android tablet agent string can contain substrings that would match a
// phone signature.
var tabletSignatures = []string{
	"ipad",
	"tablet",
	"kindle",
	"silk",
	"playbook",
}

var phoneSignatures = []string{
	"mobile",
	"iphone",
	"ipod",
	"android",
	"blackberry",
	"windows phone",
	"opera mini",
	"iemobile",
}

// HeaderClassifier is the pure user-agent implementation of Classifier.
type HeaderClassifier struct{}

// Classify maps a user-agent string to mobile, tablet or desktop.
func (HeaderClassifier) Classify(userAgent string) domain.DeviceType {
	ua := strings.ToLower(userAgent)

	for _, sig := range tabletSignatures {
		if strings.Contains(ua, sig) {
			return domain.DeviceTablet
		}
	}
	// Android tablets identify as "android" without "mobile".
	if strings.Contains(ua, "android") && !strings.Contains(ua, "mobile") {
		return domain.DeviceTablet
	}

	for _, sig := range phoneSignatures {
		if strings.Contains(ua, sig) {
			return domain.DeviceMobile
		}
	}

	return domain.DeviceDesktop
}

// BrowserName extracts a coarse browser name from a user-agent string.
// Order matters: Edge and Opera embed "chrome", Chrome embeds "safari".
func BrowserName(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge/"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case strings.Contains(ua, "chrome/") || strings.Contains(ua, "crios/"):
		return "Chrome"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	case strings.Contains(ua, "msie") || strings.Contains(ua, "trident/"):
		return "Internet Explorer"
	case ua == "":
		return "Unknown"
	default:
		return "Other"
	}
}

// Info classifies both device type and browser name in one pass.
func Info(c Classifier, userAgent string) domain.DeviceInfo {
	return domain.DeviceInfo{
		DeviceType:  c.Classify(userAgent),
		BrowserName: BrowserName(userAgent),
	}
}
