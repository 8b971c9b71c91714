package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
)

// apiHeaders suit a JSON API: nothing may frame, embed or script a response.
var apiHeaders = map[string]string{
	"X-Content-Type-Options":       "nosniff",
	"X-Frame-Options":              "DENY",
	"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":              "no-referrer",
	"Cross-Origin-Resource-Policy": "same-site",
	"X-DNS-Prefetch-Control":       "off",
}

const hstsValue = "max-age=15552000; includeSubDomains"

// SecurityHeaders sets the API security headers on every response. hsts adds
// Strict-Transport-Security and should only be on when served over TLS.
func SecurityHeaders(hsts bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range apiHeaders {
				h.Set(k, v)
			}
			if hsts {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			h.Del("X-Powered-By")
			next.ServeHTTP(w, r)
		})
	}
}

// HostCheck rejects requests whose Host is not allowedHost (bare hostname,
// port ignored). An empty allowedHost disables the check.
func HostCheck(allowedHost string) func(http.Handler) http.Handler {
	allowedHost = strings.TrimSpace(allowedHost)
	return func(next http.Handler) http.Handler {
		if allowedHost == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			if !strings.EqualFold(host, allowedHost) {
				apperr.Write(w, apperr.Forbidden("Forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
