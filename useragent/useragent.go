// Package useragent classifies user-agent strings for device targeting
// and click attribution. Classification is substring matching only: it is
// pure, allocation-light, and safe on the redirect hot path.
package useragent

import "strings"

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"

	OSIOS     = "ios"
	OSAndroid = "android"
	OSMac     = "macos"
	OSWindows = "windows"
	OSLinux   = "linux"
	OSUnknown = "unknown"

	BrowserChrome  = "chrome"
	BrowserFirefox = "firefox"
	BrowserSafari  = "safari"
	BrowserEdge    = "edge"
	BrowserOpera   = "opera"
	BrowserUnknown = "unknown"
)

// botMarkers are matched as substrings against the lower-cased user agent.
// Order does not matter; the first hit flags the click as a bot.
var botMarkers = []string{
	"bot",
	"crawler",
	"spider",
	"crawling",
	"scraper",
	"facebookexternalhit",
	"whatsapp",
	"telegrambot",
	"slackbot",
	"twitterbot",
	"linkedinbot",
	"pinterest",
	"headlesschrome",
	"lighthouse",
	"curl/",
	"wget/",
	"python-requests",
	"go-http-client",
}

// Classification is the derived view of a user agent.
type Classification struct {
	Device  string
	OS      string
	Browser string
	Bot     bool
}

// Classify derives device, OS, browser and bot flags from a user agent.
func Classify(ua string) Classification {
	lower := strings.ToLower(ua)
	return Classification{
		Device:  device(lower),
		OS:      operatingSystem(lower),
		Browser: browser(lower),
		Bot:     IsBot(ua),
	}
}

// IsBot reports whether the user agent looks like an automated client.
func IsBot(ua string) bool {
	if ua == "" {
		return false
	}
	lower := strings.ToLower(ua)
	for _, marker := range botMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsIOS reports whether the user agent is an iOS device.
func IsIOS(ua string) bool {
	lower := strings.ToLower(ua)
	return strings.Contains(lower, "iphone") ||
		strings.Contains(lower, "ipad") ||
		strings.Contains(lower, "ipod")
}

// IsAndroid reports whether the user agent is an Android device.
func IsAndroid(ua string) bool {
	return strings.Contains(strings.ToLower(ua), "android")
}

func device(lower string) string {
	switch {
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		return DeviceTablet
	case strings.Contains(lower, "mobi") ||
		strings.Contains(lower, "iphone") ||
		strings.Contains(lower, "android"):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

func operatingSystem(lower string) string {
	switch {
	case strings.Contains(lower, "iphone") || strings.Contains(lower, "ipad") || strings.Contains(lower, "ipod"):
		return OSIOS
	case strings.Contains(lower, "android"):
		return OSAndroid
	case strings.Contains(lower, "mac os") || strings.Contains(lower, "macintosh"):
		return OSMac
	case strings.Contains(lower, "windows"):
		return OSWindows
	case strings.Contains(lower, "linux"):
		return OSLinux
	default:
		return OSUnknown
	}
}

func browser(lower string) string {
	switch {
	// Edge and Opera ship a Chrome token, check them first.
	case strings.Contains(lower, "edg/") || strings.Contains(lower, "edge/"):
		return BrowserEdge
	case strings.Contains(lower, "opr/") || strings.Contains(lower, "opera"):
		return BrowserOpera
	case strings.Contains(lower, "chrome/") || strings.Contains(lower, "crios/"):
		return BrowserChrome
	case strings.Contains(lower, "firefox/") || strings.Contains(lower, "fxios/"):
		return BrowserFirefox
	case strings.Contains(lower, "safari/"):
		return BrowserSafari
	default:
		return BrowserUnknown
	}
}
