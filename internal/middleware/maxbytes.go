package middleware

import "net/http"

// DefaultMaxBodyBytes caps request bodies. Only login accepts a body.
const DefaultMaxBodyBytes = 64 << 10

// MaxBytes limits the request body size; reads past maxBytes fail and the
// handler answers 400 for the truncated JSON.
func MaxBytes(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
