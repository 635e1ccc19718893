package ratelimiting

import (
	"net/http"
	"strings"
)

// All requests without a known address share this identifier
const UnknownClientAddress = "unknown"

// ClientAddress identifies the client by the first X-Forwarded-For entry, then X-Real-IP
func ClientAddress(r *http.Request) string {
	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if address := strings.TrimSpace(first); address != "" {
			return address
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	return UnknownClientAddress
}
