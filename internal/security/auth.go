// Package security guards the admin API.
package security

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth checks the Authorization header against a shared admin token.
type BearerAuth struct {
	Enabled bool
	Token   string
}

// Authorize reports whether r carries the admin token. A disabled check
// always passes; an enabled check with no token configured never does.
func (a BearerAuth) Authorize(r *http.Request) bool {
	if !a.Enabled {
		return true
	}
	if a.Token == "" {
		return false
	}
	head := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(head) < len(prefix) || !strings.EqualFold(head[:len(prefix)], prefix) {
		return false
	}
	candidate := strings.TrimSpace(head[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(a.Token)) == 1
}

// Middleware rejects unauthorized requests with 401 and a JSON error body.
func (a BearerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Authorize(r) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="stagesync"`)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
