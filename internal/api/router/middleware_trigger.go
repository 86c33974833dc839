package router

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const triggerTokenHeader = "X-Trigger-Token"

// requireTriggerToken guards scheduler-invoked endpoints with a shared secret.
// When expected is empty, the middleware is a no-op.
func requireTriggerToken(expected string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(triggerTokenHeader))
			if token == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
				}
			}
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				http.Error(w, "invalid trigger token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
