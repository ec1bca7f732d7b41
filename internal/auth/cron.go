package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireCron guards the internal scheduler triggers with the shared cron
// secret. The token is accepted as a bearer header or a ?token= query param
// (some cron hosts cannot set headers).
func RequireCron(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || token == r.Header.Get("Authorization") {
				token = strings.TrimSpace(r.URL.Query().Get("token"))
			}
			if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
