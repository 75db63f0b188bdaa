package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authenticate checks the shared-secret bearer token in constant time.
// An empty configured secret disables auth (local-only default binding).
func (s *Server) authenticate(r *http.Request) bool {
	if s.sharedSecret == "" {
		return true
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.sharedSecret)) == 1
}

// requireAuth wraps a handler with bearer authentication.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}
