package bifrost

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

// ClientIP returns the address a token is bound to: the first entry of
// X-Forwarded-For when present, otherwise the host part of RemoteAddr.
//
// The same function must be used at issuance and validation; any other
// header preference would change which IP the digest covers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return host
}

// RequestInfoFromHTTP captures the caller details used by Issue and Validate.
func RequestInfoFromHTTP(r *http.Request) RequestInfo {
	return RequestInfo{
		ClientIP:  ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// ParseDevice derives browser, OS and device type from a user agent.
func ParseDevice(ip, ua string) DeviceInfo {
	parsed := useragent.New(ua)
	browser, browserVersion := parsed.Browser()
	if browserVersion != "" {
		browser = browser + " " + browserVersion
	}

	osInfo := parsed.OSInfo()
	os := osInfo.Name
	if osInfo.Version != "" {
		os = os + " " + osInfo.Version
	}

	deviceType := "desktop"
	if parsed.Mobile() {
		deviceType = "mobile"
	} else if parsed.Bot() {
		deviceType = "bot"
	} else if isTablet(ua) {
		deviceType = "tablet"
	}

	return DeviceInfo{
		IP:         ip,
		UserAgent:  ua,
		Browser:    browser,
		OS:         os,
		DeviceType: deviceType,
	}
}

// isTablet checks if the user agent indicates a tablet device.
// Set-top boxes and smart TVs are common on IPTV hotspots and report
// as desktop.
func isTablet(ua string) bool {
	ua = strings.ToLower(ua)
	for _, keyword := range []string{"ipad", "tablet", "playbook", "silk", "kindle"} {
		if strings.Contains(ua, keyword) {
			return true
		}
	}
	return false
}
