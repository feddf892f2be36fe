package middleware

import (
	"crypto/subtle"
	"net/http"

	"hvac-booking-core/pkg/response"
)

// APIKey guards /api routes with a shared key when one is configured. An empty
// configured key disables the check entirely.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" {
				supplied := r.Header.Get("X-API-Key")
				if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
					response.Error(w, http.StatusUnauthorized, "Unauthorized")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
