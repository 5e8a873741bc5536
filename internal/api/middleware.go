// Package api implements the Daybook REST API using chi.
package api

import (
	"net/http"
	"strings"
)

// TokenValidator reports whether a presented bearer token grants access.
type TokenValidator func(token string) bool

// AuthMiddleware returns middleware that validates a Bearer token via the
// given validator. A nil validator means authentication is disabled and
// all requests pass through.
func AuthMiddleware(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validate == nil {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if !strings.HasPrefix(header, "Bearer ") || !validate(token) {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
