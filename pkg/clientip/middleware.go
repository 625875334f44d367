package clientip

import "net/http"

// Middleware stores the resolved client address in the request context.
// A nil extractor uses DefaultHeaders.
func Middleware(e *Extractor) func(http.Handler) http.Handler {
	if e == nil {
		e = defaultExtractor
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithIP(r.Context(), e.FromRequest(r))))
		})
	}
}
