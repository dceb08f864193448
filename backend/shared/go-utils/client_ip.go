package utils

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the best client address from proxy headers, falling back
// to RemoteAddr. It returns "" when nothing parses as an IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			if ip = strings.TrimSpace(ip); isValidIP(ip) {
				return ip
			}
		}
	}
	for _, h := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		if ip := r.Header.Get(h); isValidIP(ip) {
			return ip
		}
	}
	if fwd := r.Header.Get("Forwarded"); fwd != "" {
		for _, part := range strings.Split(fwd, ";") {
			part = strings.TrimSpace(part)
			if ip, ok := strings.CutPrefix(part, "for="); ok {
				if ip = strings.Trim(ip, `"`); isValidIP(ip) {
					return ip
				}
			}
		}
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && isValidIP(ip) {
		return ip
	}
	return ""
}

// ClientPlatform reads X-Platform ("web", "android" or "ios"); anything
// else is reported as web.
func ClientPlatform(r *http.Request) string {
	switch p := strings.ToLower(r.Header.Get("X-Platform")); p {
	case "android", "ios":
		return p
	default:
		return "web"
	}
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
