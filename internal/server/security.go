package server

import (
	"crypto/subtle"
	"net/http"
)

// corsMiddleware applies permissive CORS headers to every response and
// answers every preflight with 204.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, PUT, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With, Authorization, x-api-key")
		h.Set("X-Content-Type-Options", "nosniff")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey rejects requests whose x-api-key header does not match.
// An empty configured key rejects everything.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	want := []byte(s.cfg.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("x-api-key"))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, msgUnauthorized, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
