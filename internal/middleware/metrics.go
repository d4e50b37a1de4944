package middleware

import (
	"net/http"
	"time"
)

// HTTPObserver receives one observation per request.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Metrics reports every request to obs, labelled by route pattern rather
// than raw path so /api/books/{id} stays a single series.
func Metrics(obs HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			obs.ObserveHTTP(r.Method, routePattern(r), wrapped.statusCode, time.Since(start))
		})
	}
}
