package auth

import (
	"encoding/json"
	"net/http"
)

// Middleware returns HTTP middleware that runs the extractor and attaches
// the resulting auth Context to the request context. Requests the
// extractor rejects are answered with 401 and never reach the handler, so
// downstream code may rely on MustFromContext.
func Middleware(extract Extractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := extract(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "unauthorized",
					"message": "authentication required",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), ac)))
		})
	}
}
