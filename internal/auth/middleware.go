package auth

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Middleware returns an HTTP middleware that validates API key authentication.
// An empty apiKey disables authentication. Requests to skipPaths are always
// allowed. If rl is non-nil, failed attempts are tracked per client IP and
// the IP is blocked after too many failures.
func Middleware(apiKey string, skipPaths []string, rl *RateLimiter) func(http.Handler) http.Handler {
	skipSet := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skipSet[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || skipSet[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := ClientIPKeyFunc(r)
			if rl != nil && rl.IsAuthBlocked(clientIP) {
				w.Header().Set("Retry-After", strconv.Itoa(rl.AuthBlockRetryAfter(clientIP)))
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many failed authentication attempts. Try again later.")
				return
			}

			if !ValidateKey(KeyFromRequest(r), apiKey) {
				if rl != nil {
					rl.AuthFailure(clientIP)
				}
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid API key")
				return
			}

			if rl != nil {
				rl.AuthSuccess(clientIP)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes the service's JSON error body.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
