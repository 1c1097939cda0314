package risk

import (
	"strings"

	"github.com/mssola/useragent"
)

// Device families recognised by the extractor.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
	DeviceOther   = "Other"
)

var (
	commonOS       = []string{"Windows", "Mac OS", "Ubuntu", "Linux", "Android", "iOS"}
	commonBrowsers = []string{"Chrome", "Firefox", "Safari", "Edge", "Opera"}
)

// Client is the parsed device signature of a user agent.
type Client struct {
	Device  string
	OS      string
	Browser string
}

func ParseUserAgent(raw string) Client {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Client{Device: DeviceOther}
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	c := Client{
		OS:      osName(ua),
		Browser: browser,
	}

	platform := ua.Platform()
	switch {
	case ua.Bot():
		c.Device = DeviceBot
	case platform == "iPad" || strings.Contains(raw, "Tablet") ||
		(c.OS == "Android" && !ua.Mobile()):
		c.Device = DeviceTablet
	case ua.Mobile():
		c.Device = DeviceMobile
	case isDesktopPlatform(platform, c.OS):
		c.Device = DeviceDesktop
	default:
		c.Device = DeviceOther
	}
	return c
}

func osName(ua *useragent.UserAgent) string {
	switch ua.Platform() {
	case "iPhone", "iPad", "iPod", "iPod touch":
		return "iOS"
	}
	if strings.Contains(ua.OS(), "Ubuntu") {
		return "Ubuntu"
	}
	return ua.OSInfo().Name
}

func isDesktopPlatform(platform, os string) bool {
	switch platform {
	case "Windows", "Macintosh", "X11", "Linux":
		return true
	}
	return strings.Contains(os, "Windows") || strings.Contains(os, "Mac OS") || strings.Contains(os, "Linux")
}

// DeviceScore rates how unusual a device family is for an interactive login.
func DeviceScore(family string) float64 {
	switch family {
	case DeviceDesktop:
		return 0
	case DeviceMobile, DeviceTablet:
		return 0.25
	}
	return 1.0
}

// OSScore is 0 for a common operating system and 0.5 otherwise.
func OSScore(os string) float64 {
	return commonnessScore(os, commonOS)
}

// BrowserScore is 0 for a common browser and 0.5 otherwise.
func BrowserScore(browser string) float64 {
	return commonnessScore(browser, commonBrowsers)
}

func commonnessScore(value string, allow []string) float64 {
	if value != "" {
		for _, known := range allow {
			if strings.Contains(value, known) {
				return 0
			}
		}
	}
	return 0.5
}
