package middleware

import (
	"net/http"
	"strings"
)

// CORSAllowedMethods are the methods the API serves cross-origin.
var CORSAllowedMethods = []string{"GET", "POST", "OPTIONS"}

// CORSAllowedHeaders are the request headers allowed cross-origin.
var CORSAllowedHeaders = []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"}

// CORS sets CORS response headers for allowed origins and answers OPTIONS
// preflight. With no origins it is a no-op; "*" allows any origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	originSet := make(map[string]bool, len(origins))
	for _, o := range origins {
		originSet[o] = true
	}
	methods := strings.Join(CORSAllowedMethods, ", ")
	headers := strings.Join(CORSAllowedHeaders, ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")
			origin := r.Header.Get("Origin")
			if origin != "" && (originSet[origin] || originSet["*"]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
