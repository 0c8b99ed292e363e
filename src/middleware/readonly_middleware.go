package middleware

import (
	"net/http"
)

// ReadOnlyMiddleware rejects every write except the POST paths listed in allowedPosts.
func ReadOnlyMiddleware(allowedPosts ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedPosts))
	for _, path := range allowedPosts {
		allowed[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			case http.MethodPost:
				if allowed[r.URL.Path] {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "reports are read-only", http.StatusMethodNotAllowed)
		})
	}
}
