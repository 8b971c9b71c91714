// Package clientip resolves the address a request came from.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the host part of r.RemoteAddr.
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}

// Forwarded returns the left-most X-Forwarded-For address, or RealClientIP
// when the header is missing or unparsable. Only trust it behind a proxy
// that overwrites the header.
func Forwarded(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return RealClientIP(r)
	}
	first := strings.TrimSpace(strings.Split(xff, ",")[0])
	if net.ParseIP(first) == nil {
		return RealClientIP(r)
	}
	return first
}

// Resolver picks Forwarded when the app sits behind a trusted proxy.
func Resolver(trustProxy bool) func(*http.Request) string {
	if trustProxy {
		return Forwarded
	}
	return RealClientIP
}
