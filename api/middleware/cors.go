package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the configured web origins, or the local dev server when none
// are configured.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After", "Idempotent-Replayed", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
