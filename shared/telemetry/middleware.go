package telemetry

import "net/http"

// Middleware injects the telemetry instance into each request's context
func Middleware(tel *Telemetry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithTelemetry(r.Context(), tel)))
		})
	}
}
